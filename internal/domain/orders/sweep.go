package orders

import (
	"context"

	"github.com/careflow/careflow/internal/domain/catalog"
)

// SweepRepeatingOrders regenerates nursing tasks for Active
// healthcare-activity requests whose repeat interval has elapsed since the
// last completed task. Requests without a task_done_at stamp are skipped:
// their initial task has not completed, so the window has not started. A
// request whose worklist still holds an uncompleted task is also skipped so
// a slow ward does not accumulate duplicate tasks. Returns the number of
// tasks generated.
func (s *Service) SweepRepeatingOrders(ctx context.Context) (int, error) {
	srs, err := s.requests.ListActiveRepeating(ctx, catalog.TemplateHealthcareActivity)
	if err != nil {
		return 0, err
	}

	generated := 0
	for _, sr := range srs {
		if sr.RepeatInEvery <= 0 || sr.TaskDoneAt == nil {
			continue
		}
		elapsedHours := s.now().Sub(*sr.TaskDoneAt).Hours()
		if elapsedHours < float64(sr.RepeatInEvery)/3600 {
			continue
		}
		tasks, err := s.activities.ListNursingTasksByRequest(ctx, sr.ID)
		if err != nil {
			s.logger.Warn().Err(err).Str("service_request", sr.ID.String()).Msg("sweep: task lookup failed")
			continue
		}
		if hasOpenTask(tasks) {
			continue
		}
		p, err := s.patients.GetPatient(ctx, sr.PatientID)
		if err != nil {
			s.logger.Warn().Err(err).Str("service_request", sr.ID.String()).Msg("sweep: patient lookup failed")
			continue
		}
		if _, err := s.makeNursingTask(ctx, sr, p); err != nil {
			s.logger.Warn().Err(err).Str("service_request", sr.ID.String()).Msg("sweep: nursing task creation failed")
			continue
		}
		generated++
	}
	return generated, nil
}

func hasOpenTask(tasks []*NursingTask) bool {
	for _, t := range tasks {
		if t.Status != TaskStatusCompleted {
			return true
		}
	}
	return false
}
