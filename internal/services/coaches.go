package services

import (
	"context"
	"errors"
	"fmt"

	"academy/internal/aggregate"
	"academy/internal/amqp"
	"academy/internal/backup"
	"academy/internal/core"
	"academy/internal/store"
)

type CoachService struct {
	manager
}

func NewCoachService(d Deps) *CoachService {
	return &CoachService{manager: newManager(d)}
}

// CoachForm is the add/edit coach form.
type CoachForm struct {
	Name     string `form:"name" validate:"required"`
	CenterID int64  `form:"center_id" validate:"required"`
}

func (f *CoachForm) normalize() error {
	f.Name = core.SanitizeInput(f.Name, maxNameLen)
	return core.Validate(f)
}

func (s *CoachService) requireCenter(ctx context.Context, q store.CenterQueries, id int64) error {
	if _, err := q.GetCenter(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return fmt.Errorf("center %d: %w", id, core.ErrNotFound)
		}
		return err
	}
	return nil
}

// AddCoach creates a coach at an existing center.
func (s *CoachService) AddCoach(ctx context.Context, form CoachForm) (int64, error) {
	if err := form.normalize(); err != nil {
		return 0, err
	}
	if err := s.requireCenter(ctx, s.store, form.CenterID); err != nil {
		return 0, err
	}

	var id int64
	err := s.mutate(ctx, backup.ReasonCoaches, func(q store.Queries) error {
		var err error
		id, err = q.InsertCoach(ctx, core.Coach{Name: form.Name, CenterID: form.CenterID})
		return err
	})
	if err != nil {
		return 0, err
	}
	s.changed(ctx, backup.ReasonCoaches, amqp.NewRecordsChangedMessage(amqp.EntityCoach, "create", 0, 0, form.CenterID), id)
	return id, nil
}

// EditCoach renames or moves a coach. A move rewrites the year's targets of
// both the old and the new center.
func (s *CoachService) EditCoach(ctx context.Context, id int64, form CoachForm, year int) error {
	if err := form.normalize(); err != nil {
		return err
	}
	coach, err := s.store.GetCoach(ctx, id)
	if err != nil {
		return err
	}
	if err := s.requireCenter(ctx, s.store, form.CenterID); err != nil {
		return err
	}

	oldCenter := coach.CenterID
	coach.Name, coach.CenterID = form.Name, form.CenterID
	err = s.mutate(ctx, backup.ReasonCoaches, func(q store.Queries) error {
		if err := q.UpdateCoach(ctx, coach); err != nil {
			return err
		}
		if oldCenter == coach.CenterID {
			return nil
		}
		for _, c := range []int64{oldCenter, coach.CenterID} {
			if _, err := aggregate.UpdateTargetsForCenter(ctx, q, c, year); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.changed(ctx, backup.ReasonCoaches, amqp.NewRecordsChangedMessage(amqp.EntityCoach, "update", year, 0, coach.CenterID), id)
	return nil
}

// DeleteCoach removes the coach with their salaries and leaves. An unknown
// id changes nothing and returns core.ErrNotFound.
func (s *CoachService) DeleteCoach(ctx context.Context, id int64, year int) error {
	coach, err := s.store.GetCoach(ctx, id)
	if err != nil {
		return fmt.Errorf("coach %d: %w", id, err)
	}
	err = s.mutate(ctx, backup.ReasonCoaches, func(q store.Queries) error {
		if _, err := q.DeleteSalaries(ctx, store.SalaryFilter{CoachID: id}); err != nil {
			return err
		}
		if _, err := q.DeleteLeavesByCoach(ctx, id); err != nil {
			return err
		}
		if err := q.DeleteCoach(ctx, id); err != nil {
			return err
		}
		_, err := aggregate.UpdateTargetsForCenter(ctx, q, coach.CenterID, year)
		return err
	})
	if err != nil {
		return err
	}
	s.changed(ctx, backup.ReasonCoaches, amqp.NewRecordsChangedMessage(amqp.EntityCoach, "delete", year, 0, coach.CenterID), id)
	return nil
}

// UpsertSalary sets a coach's salary for month/year and rewrites the year's
// targets of the coach's center. Blank input stores 0.
func (s *CoachService) UpsertSalary(ctx context.Context, coachID int64, month core.Month, year int, input string) error {
	if !month.Valid() {
		return core.Invalid("salary_month", "month must be a calendar month")
	}
	amount, _, err := core.ParseAmount(input)
	if err != nil {
		return core.Invalid("salary", "Salary must be a non-negative number")
	}
	coach, err := s.store.GetCoach(ctx, coachID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return err
	}

	err = s.mutate(ctx, backup.ReasonCoaches, func(q store.Queries) error {
		existing, err := q.GetSalary(ctx, coachID, month, year)
		switch {
		case err == nil:
			err = q.UpdateSalary(ctx, existing.ID, amount)
		case errors.Is(err, core.ErrNotFound):
			_, err = q.InsertSalary(ctx, core.CoachSalary{CoachID: coachID, Month: month, Year: year, Salary: amount})
		}
		if err != nil {
			return err
		}
		_, err = aggregate.UpdateTargetsForCenter(ctx, q, coach.CenterID, year)
		return err
	})
	if err != nil {
		return err
	}
	s.changed(ctx, backup.ReasonCoaches, amqp.NewRecordsChangedMessage(amqp.EntitySalary, "update", year, int(month), coach.CenterID), coachID)
	return nil
}
