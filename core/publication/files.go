package publication

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// FilesFor collects one submitter's file area, split into workflow files and
// auxiliary resources. Files arrive ordered by TimeModified ascending.
func (svc *Service) FilesFor(ctx context.Context, inst Instance, sub Submitter) (FileSet, error) {
	files, err := svc.files.QueryFiles(ctx, inst.ID, sub.ID)
	if err != nil {
		return FileSet{}, errors.Wrap(err, "querying submission files")
	}

	var set FileSet
	for _, f := range files {
		if f.IsResource() {
			set.Resources = append(set.Resources, f)
		} else {
			set.Files = append(set.Files, f)
		}
		if f.TimeModified.After(set.LastModified) {
			set.LastModified = f.TimeModified
		}
	}
	return set, nil
}

// FilesForUser aggregates the file areas a user can see: their own in
// individual modes, all of their groups' merged in team mode (with the
// maximum LastModified across contributing groups). A user with no valid
// submitter sees an empty set; that is a defined outcome, not an error.
func (svc *Service) FilesForUser(ctx context.Context, inst Instance, userID int) (FileSet, error) {
	subs, err := svc.SubmittersForUser(ctx, inst, userID)
	if err != nil {
		if errors.Cause(err) == ErrNoSubmitter {
			return FileSet{}, nil
		}
		return FileSet{}, err
	}

	var merged FileSet
	for _, sub := range subs {
		set, err := svc.FilesFor(ctx, inst, sub)
		if err != nil {
			return FileSet{}, err
		}
		merged.Files = append(merged.Files, set.Files...)
		merged.Resources = append(merged.Resources, set.Resources...)
		if set.LastModified.After(merged.LastModified) {
			merged.LastModified = set.LastModified
		}
	}
	if len(subs) > 1 {
		sort.SliceStable(merged.Files, func(i, j int) bool {
			return merged.Files[i].TimeModified.Before(merged.Files[j].TimeModified)
		})
		sort.SliceStable(merged.Resources, func(i, j int) bool {
			return merged.Resources[i].TimeModified.Before(merged.Resources[j].TimeModified)
		})
	}
	return merged, nil
}

// RegisterUpload records the metadata of a file a student placed in the blob
// store. The blob reference is generated when the store did not assign one.
// Upload mode only; the write is refused outside the effective submission
// window (ErrSubmissionClosed).
func (svc *Service) RegisterUpload(ctx context.Context, inst Instance, userID int, nf NewFile) (SubmissionFile, error) {
	if inst.Mode != ModeUpload {
		return SubmissionFile{}, ErrSubmissionClosed
	}
	sched, err := svc.ResolveSchedule(ctx, inst, Submitter{Kind: ActorUser, ID: userID})
	if err != nil {
		return SubmissionFile{}, err
	}
	if !sched.SubmissionOpen(svc.nowFunc()) {
		return SubmissionFile{}, ErrSubmissionClosed
	}

	fileID := nf.FileID
	if fileID == "" {
		fileID = uuid.New().String()
	}
	filepath := nf.Filepath
	if filepath == "" {
		filepath = "/"
	}
	f, err := svc.files.UpsertFile(ctx, SubmissionFile{
		PublicationID: inst.ID,
		OwnerID:       userID,
		FileID:        fileID,
		Filename:      nf.Filename,
		Filepath:      filepath,
		TimeModified:  svc.nowFunc().UTC(),
	})
	if err != nil {
		return SubmissionFile{}, errors.Wrap(err, "upserting uploaded file")
	}

	if inst.NotifyFileChange {
		svc.notifyFileChange(ctx, inst, 1)
	}
	if err := svc.pushCompletion(ctx, inst, userID); err != nil {
		return SubmissionFile{}, err
	}
	return f, nil
}
