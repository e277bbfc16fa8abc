package orders

import (
	"context"

	"github.com/google/uuid"

	"github.com/careflow/careflow/internal/domain/catalog"
)

type ServiceRequestRepository interface {
	Create(ctx context.Context, sr *ServiceRequest) error
	GetByID(ctx context.Context, id uuid.UUID) (*ServiceRequest, error)
	Update(ctx context.Context, sr *ServiceRequest) error
	List(ctx context.Context, limit, offset int) ([]*ServiceRequest, int, error)
	ListByOrderGroup(ctx context.Context, orderGroup uuid.UUID) ([]*ServiceRequest, error)
	// ExistsByOrderGroupAndTemplate guards encounter re-submission against
	// duplicate requests for the same template line.
	ExistsByOrderGroupAndTemplate(ctx context.Context, orderGroup, templateID uuid.UUID) (bool, error)
	// ListActiveRepeating returns Active healthcare-activity requests with a
	// non-zero repeat interval, for the scheduler sweep.
	ListActiveRepeating(ctx context.Context, templateType catalog.TemplateType) ([]*ServiceRequest, error)
}

// ActivityRepository persists the documents fan-out produces. Most are
// write-only here; nursing tasks are also read back for the worklist and by
// the repeating-order sweep, and completed in bulk when a request's task is
// marked done.
type ActivityRepository interface {
	CreateLabTest(ctx context.Context, lt *LabTest) error
	CreateClinicalProcedure(ctx context.Context, cp *ClinicalProcedure) error
	CreateTherapySession(ctx context.Context, ts *TherapySession) error
	CreateNursingTask(ctx context.Context, nt *NursingTask) error
	CreateMedicationRequest(ctx context.Context, mr *MedicationRequest) error
	CreateSampleCollection(ctx context.Context, sc *SampleCollection) error
	ListNursingTasksByRequest(ctx context.Context, serviceRequestID uuid.UUID) ([]*NursingTask, error)
	// CompleteOpenNursingTasks marks every non-Completed task on the request
	// Completed, returning how many it closed.
	CompleteOpenNursingTasks(ctx context.Context, serviceRequestID uuid.UUID) (int, error)
}
