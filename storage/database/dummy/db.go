package dummydb

import (
	"sync"

	"github.com/edulab/publication/core/publication"
)

// In-memory stand-in for the database, used by app tests.

type (
	DB struct {
		publication *publicationTable
		file        *fileTable
		override    *overrideTable
		platform    *PlatformData
	}

	publicationTable struct {
		sync.RWMutex
		seq   int
		table map[int]*publication.Instance
	}

	fileTable struct {
		sync.RWMutex
		seq   int
		table map[int]*publication.SubmissionFile
		votes map[int]map[int]publication.Approval // file record -> user -> vote
	}

	overrideTable struct {
		sync.RWMutex
		seq   int
		table map[int]*publication.Override
	}

	// PlatformData holds the shared-LMS fixtures the platform adapters read.
	PlatformData struct {
		sync.RWMutex
		Groups      map[int][]int // courseID -> group ids
		UserGroups  map[int][]int // userID -> group ids, membership order
		Members     map[int][]int // groupID -> user ids
		Enrolled    map[int][]int // courseID -> user ids
		Addresses   map[int]string
		Graders     map[int][]string // courseID -> grader emails
		Assignments map[int]publication.Assignment
		Submissions map[int][]publication.ImportedSubmission // assignmentID -> submissions
		Completion  map[[2]int]publication.CompletionState   // (publicationID, userID)
	}
)

func Open() (*DB, error) {
	db := &DB{
		publication: &publicationTable{table: make(map[int]*publication.Instance)},
		file: &fileTable{
			table: make(map[int]*publication.SubmissionFile),
			votes: make(map[int]map[int]publication.Approval),
		},
		override: &overrideTable{table: make(map[int]*publication.Override)},
		platform: &PlatformData{
			Groups:      make(map[int][]int),
			UserGroups:  make(map[int][]int),
			Members:     make(map[int][]int),
			Enrolled:    make(map[int][]int),
			Addresses:   make(map[int]string),
			Graders:     make(map[int][]string),
			Assignments: make(map[int]publication.Assignment),
			Submissions: make(map[int][]publication.ImportedSubmission),
			Completion:  make(map[[2]int]publication.CompletionState),
		},
	}
	return db, nil
}

// Platform exposes the fixture data for tests to seed.
func (db *DB) Platform() *PlatformData { return db.platform }
