package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/edulab/publication/core"
	"github.com/edulab/publication/core/publication"
)

type publicationApi struct {
	svc      *publication.Service
	validate *validator.Validate
}

func registerPublicationAPI(
	g *echo.Group,
	jwt echo.MiddlewareFunc,
	svc *publication.Service,
	validate *validator.Validate,
) {
	api := publicationApi{
		svc:      svc,
		validate: validate,
	}

	pg := g.Group("/publications", jwt)
	pg.POST("", api.create, teacherMiddleware())
	pg.GET("", api.query, teacherMiddleware())

	// detail endpoints
	dg := pg.Group("/:id")
	dg.GET("", api.retrieve)
	dg.PUT("", api.update, teacherMiddleware())
	dg.DELETE("", api.destroy, teacherMiddleware())

	dg.GET("/files", api.files)
	dg.POST("/files", api.uploadFile)
	dg.GET("/released", api.releasedFiles)
	dg.GET("/status", api.status)
	dg.GET("/schedule", api.schedule)
	dg.PUT("/files/:fileID/approval", api.setApproval)

	dg.GET("/submitters", api.submitters, teacherMiddleware())
	dg.GET("/pending-approvals", api.pendingApprovals, teacherMiddleware())
	dg.PUT("/files/:fileID/teacher-approval", api.setTeacherApproval, teacherMiddleware())
	dg.GET("/files/:fileID/votes", api.votes, teacherMiddleware())
	dg.POST("/import", api.triggerImport, teacherMiddleware())

	dg.GET("/overrides", api.queryOverrides, teacherMiddleware())
	dg.PUT("/overrides", api.saveOverride, teacherMiddleware())
	dg.DELETE("/overrides", api.deleteOverride, teacherMiddleware())

	// inbound platform events
	eg := g.Group("/events", jwt, teacherMiddleware())
	eg.POST("/assignment-submitted", api.assignmentSubmitted)
	eg.POST("/membership-changed", api.membershipChanged)
}

// getInstance resolves the detail-endpoint instance from the :id param.
func (api *publicationApi) getInstance(ctx echo.Context) (publication.Instance, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil {
		return publication.Instance{}, errHttpNotFound
	}
	inst, err := api.svc.Get(ctx.Request().Context(), id)
	if err != nil {
		return publication.Instance{}, errors.Wrap(err, "getting publication")
	}
	return inst, nil
}

// Handlers

func (api *publicationApi) create(ctx echo.Context) error {
	var data publication.NewInstance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewInstance")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	inst, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating publication")
	}
	return ctx.JSON(http.StatusCreated, inst)
}

func (api *publicationApi) query(ctx echo.Context) error {
	courseID, err := strconv.Atoi(ctx.QueryParam("course_id"))
	if err != nil {
		return core.NewValidationError(nil, core.FieldError{Field: "course_id", Error: "a course id is required"})
	}
	insts, err := api.svc.QueryByCourse(ctx.Request().Context(), courseID)
	if err != nil {
		return errors.Wrap(err, "querying publications")
	}
	if insts == nil {
		insts = []publication.Instance{}
	}
	return ctx.JSON(http.StatusOK, insts)
}

func (api *publicationApi) retrieve(ctx echo.Context) error {
	inst, err := api.getInstance(ctx)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, inst)
}

func (api *publicationApi) update(ctx echo.Context) error {
	inst, err := api.getInstance(ctx)
	if err != nil {
		return err
	}

	var data publication.UpdateInstance
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateInstance")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	inst, err = api.svc.Update(ctx.Request().Context(), inst.ID, data)
	if err != nil {
		return errors.Wrap(err, "updating publication")
	}
	return ctx.JSON(http.StatusOK, inst)
}

func (api *publicationApi) destroy(ctx echo.Context) error {
	inst, err := api.getInstance(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.Delete(ctx.Request().Context(), inst.ID); err != nil {
		return errors.Wrap(err, "deleting publication")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *publicationApi) files(ctx echo.Context) error {
	inst, err := api.getInstance(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	set, err := api.svc.FilesForUser(ctx.Request().Context(), inst, claims.UserID)
	if err != nil {
		return errors.Wrap(err, "listing files")
	}
	if set.Files == nil {
		set.Files = []publication.SubmissionFile{}
	}
	if set.Resources == nil {
		set.Resources = []publication.SubmissionFile{}
	}
	return ctx.JSON(http.StatusOK, set)
}

func (api *publicationApi) uploadFile(ctx echo.Context) error {
	inst, err := api.getInstance(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data publication.NewFile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewFile")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	f, err := api.svc.RegisterUpload(ctx.Request().Context(), inst, claims.UserID, data)
	if err != nil {
		return errors.Wrap(err, "registering upload")
	}
	return ctx.JSON(http.StatusCreated, f)
}

func (api *publicationApi) releasedFiles(ctx echo.Context) error {
	inst, err := api.getInstance(ctx)
	if err != nil {
		return err
	}
	files, err := api.svc.ReleasedFiles(ctx.Request().Context(), inst)
	if err != nil {
		return errors.Wrap(err, "listing released files")
	}
	return ctx.JSON(http.StatusOK, files)
}

func (api *publicationApi) status(ctx echo.Context) error {
	inst, err := api.getInstance(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	status, err := api.svc.CombinedStatusForUser(ctx.Request().Context(), inst, claims.UserID)
	if err != nil {
		return errors.Wrap(err, "computing status")
	}
	return ctx.JSON(http.StatusOK, StatusResponse{Status: status.String()})
}

func (api *publicationApi) schedule(ctx echo.Context) error {
	inst, err := api.getInstance(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	// teachers may resolve another actor's schedule
	actor := publication.Submitter{Kind: publication.ActorUser, ID: claims.UserID}
	if claims.IsTeacher || claims.IsAdmin {
		if gid := ctx.QueryParam("group_id"); gid != "" {
			id, err := strconv.Atoi(gid)
			if err != nil {
				return core.NewValidationError(nil, core.FieldError{Field: "group_id", Error: "must be an integer"})
			}
			actor = publication.Submitter{Kind: publication.ActorGroup, ID: id}
		} else if uid := ctx.QueryParam("user_id"); uid != "" {
			id, err := strconv.Atoi(uid)
			if err != nil {
				return core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: "must be an integer"})
			}
			actor = publication.Submitter{Kind: publication.ActorUser, ID: id}
		}
	}

	sched, err := api.svc.ResolveSchedule(ctx.Request().Context(), inst, actor)
	if err != nil {
		return errors.Wrap(err, "resolving schedule")
	}
	return ctx.JSON(http.StatusOK, sched)
}

func (api *publicationApi) setApproval(ctx echo.Context) error {
	inst, err := api.getInstance(ctx)
	if err != nil {
		return err
	}
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	var data ApprovalRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ApprovalRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	err = api.svc.SetStudentApproval(ctx.Request().Context(), inst, claims.UserID, ctx.Param("fileID"), data.approval())
	if err != nil {
		return errors.Wrap(err, "setting student approval")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *publicationApi) setTeacherApproval(ctx echo.Context) error {
	inst, err := api.getInstance(ctx)
	if err != nil {
		return err
	}

	var data ApprovalRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ApprovalRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	err = api.svc.SetTeacherApproval(ctx.Request().Context(), inst, ctx.Param("fileID"), data.approval())
	if err != nil {
		return errors.Wrap(err, "setting teacher approval")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *publicationApi) votes(ctx echo.Context) error {
	inst, err := api.getInstance(ctx)
	if err != nil {
		return err
	}

	consensus, votes, err := api.svc.GroupApproval(ctx.Request().Context(), inst, ctx.Param("fileID"))
	if err != nil {
		return errors.Wrap(err, "folding group approval")
	}
	if votes == nil {
		votes = []publication.Vote{}
	}
	return ctx.JSON(http.StatusOK, VotesResponse{Consensus: consensus.String(), Votes: votes})
}

func (api *publicationApi) submitters(ctx echo.Context) error {
	inst, err := api.getInstance(ctx)
	if err != nil {
		return err
	}
	subs, err := api.svc.ListSubmitters(ctx.Request().Context(), inst)
	if err != nil {
		return errors.Wrap(err, "listing submitters")
	}
	if subs == nil {
		subs = []publication.Submitter{}
	}
	return ctx.JSON(http.StatusOK, subs)
}

func (api *publicationApi) pendingApprovals(ctx echo.Context) error {
	inst, err := api.getInstance(ctx)
	if err != nil {
		return err
	}
	n, err := api.svc.PendingTeacherApprovals(ctx.Request().Context(), inst)
	if err != nil {
		return errors.Wrap(err, "counting pending approvals")
	}
	return ctx.JSON(http.StatusOK, PendingApprovalsResponse{Pending: n})
}

func (api *publicationApi) triggerImport(ctx echo.Context) error {
	inst, err := api.getInstance(ctx)
	if err != nil {
		return err
	}
	if err := api.svc.HandleImportTrigger(ctx.Request().Context(), inst.ID); err != nil {
		return errors.Wrap(err, "importing files")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *publicationApi) queryOverrides(ctx echo.Context) error {
	inst, err := api.getInstance(ctx)
	if err != nil {
		return err
	}
	overrides, err := api.svc.QueryOverrides(ctx.Request().Context(), inst.ID)
	if err != nil {
		return errors.Wrap(err, "querying overrides")
	}
	if overrides == nil {
		overrides = []publication.Override{}
	}
	return ctx.JSON(http.StatusOK, overrides)
}

func (api *publicationApi) saveOverride(ctx echo.Context) error {
	inst, err := api.getInstance(ctx)
	if err != nil {
		return err
	}

	var data publication.NewOverride
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewOverride")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	ovr, err := api.svc.SaveOverride(ctx.Request().Context(), inst.ID, data)
	if err != nil {
		return errors.Wrap(err, "saving override")
	}
	return ctx.JSON(http.StatusOK, ovr)
}

func (api *publicationApi) deleteOverride(ctx echo.Context) error {
	inst, err := api.getInstance(ctx)
	if err != nil {
		return err
	}

	actor := publication.Submitter{Kind: publication.ActorUser}
	if gid := ctx.QueryParam("group_id"); gid != "" {
		id, err := strconv.Atoi(gid)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "group_id", Error: "must be an integer"})
		}
		actor = publication.Submitter{Kind: publication.ActorGroup, ID: id}
	} else if uid := ctx.QueryParam("user_id"); uid != "" {
		id, err := strconv.Atoi(uid)
		if err != nil {
			return core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: "must be an integer"})
		}
		actor = publication.Submitter{Kind: publication.ActorUser, ID: id}
	} else {
		return core.NewValidationError(nil, core.FieldError{Field: "user_id", Error: "one of user_id or group_id is required"})
	}

	if err := api.svc.DeleteOverride(ctx.Request().Context(), inst.ID, actor); err != nil {
		return errors.Wrap(err, "deleting override")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *publicationApi) assignmentSubmitted(ctx echo.Context) error {
	var data AssignmentSubmittedEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignmentSubmittedEvent")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	if err := api.svc.HandleAssessableSubmitted(ctx.Request().Context(), data.AssignmentID); err != nil {
		return errors.Wrap(err, "handling submission event")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *publicationApi) membershipChanged(ctx echo.Context) error {
	var data MembershipChangedEvent
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to MembershipChangedEvent")
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	if err := api.svc.HandleMembershipChange(ctx.Request().Context(), data.CourseID, data.UserID); err != nil {
		return errors.Wrap(err, "handling membership event")
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	ApprovalRequest struct {
		Approved *bool `json:"approved" validate:"required"`
	}

	StatusResponse struct {
		Status string `json:"status"`
	}

	VotesResponse struct {
		Consensus string             `json:"consensus"`
		Votes     []publication.Vote `json:"votes"`
	}

	PendingApprovalsResponse struct {
		Pending int `json:"pending"`
	}

	AssignmentSubmittedEvent struct {
		AssignmentID int `json:"assignment_id" validate:"required"`
	}

	MembershipChangedEvent struct {
		CourseID int `json:"course_id" validate:"required"`
		UserID   int `json:"user_id" validate:"required"`
	}
)

func (ar *ApprovalRequest) Validate(validate *validator.Validate) error {
	return validate.Struct(ar)
}

func (ar *ApprovalRequest) approval() publication.Approval {
	if ar.Approved != nil && *ar.Approved {
		return publication.ApprovalApproved
	}
	return publication.ApprovalRejected
}
