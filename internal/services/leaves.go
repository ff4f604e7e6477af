package services

import (
	"context"
	"errors"
	"fmt"

	"academy/internal/amqp"
	"academy/internal/backup"
	"academy/internal/core"
	"academy/internal/store"
)

const maxRemarksLen = 500

type LeaveService struct {
	manager
}

func NewLeaveService(d Deps) *LeaveService {
	return &LeaveService{manager: newManager(d)}
}

// LeaveForm is the add/edit leave form. Year 0 takes the year of FromDate.
type LeaveForm struct {
	CoachID   int64  `form:"coach_id" validate:"required"`
	FromDate  string `form:"from_date" validate:"required"`
	ToDate    string `form:"to_date"`
	LeaveType string `form:"leave_type" validate:"leavetype"`
	Remarks   string `form:"remarks"`
	Year      int    `form:"year"`
}

// toLeave applies the form defaults and parses it into a CoachLeave. Leave
// types match case-insensitively and are stored in their canonical form.
func (f LeaveForm) toLeave() (core.CoachLeave, error) {
	if lt, err := core.ParseLeaveType(f.LeaveType); err == nil {
		f.LeaveType = string(lt)
	}
	if f.ToDate == "" {
		f.ToDate = f.FromDate
	}
	if err := core.Validate(f); err != nil {
		return core.CoachLeave{}, err
	}

	from, err := core.ParseDate(f.FromDate)
	if err != nil {
		return core.CoachLeave{}, core.Invalid("from_date", "From date must be a date (YYYY-MM-DD)")
	}
	to, err := core.ParseDate(f.ToDate)
	if err != nil {
		return core.CoachLeave{}, core.Invalid("to_date", "To date must be a date (YYYY-MM-DD)")
	}
	if to.Before(from.Time) {
		return core.CoachLeave{}, core.Invalid("to_date", "To date must not be before from date")
	}
	year := f.Year
	if year == 0 {
		year = from.Year()
	}
	return core.CoachLeave{
		CoachID:   f.CoachID,
		FromDate:  from,
		ToDate:    to,
		LeaveType: core.LeaveType(f.LeaveType),
		Remarks:   core.SanitizeInput(f.Remarks, maxRemarksLen),
		Year:      year,
	}, nil
}

func (s *LeaveService) requireCoach(ctx context.Context, id int64) (core.Coach, error) {
	c, err := s.store.GetCoach(ctx, id)
	if errors.Is(err, core.ErrNotFound) {
		return c, fmt.Errorf("coach %d: %w", id, core.ErrNotFound)
	}
	return c, err
}

func (s *LeaveService) AddLeave(ctx context.Context, form LeaveForm) (int64, error) {
	leave, err := form.toLeave()
	if err != nil {
		return 0, err
	}
	coach, err := s.requireCoach(ctx, leave.CoachID)
	if err != nil {
		return 0, err
	}

	var id int64
	err = s.mutate(ctx, backup.ReasonLeaves, func(q store.Queries) error {
		var err error
		id, err = q.InsertLeave(ctx, leave)
		return err
	})
	if err != nil {
		return 0, err
	}
	s.changed(ctx, backup.ReasonLeaves, amqp.NewRecordsChangedMessage(amqp.EntityLeave, "create", leave.Year, 0, coach.CenterID), id)
	return id, nil
}

func (s *LeaveService) EditLeave(ctx context.Context, id int64, form LeaveForm) error {
	leave, err := form.toLeave()
	if err != nil {
		return err
	}
	if _, err := s.store.GetLeave(ctx, id); err != nil {
		return err
	}
	coach, err := s.requireCoach(ctx, leave.CoachID)
	if err != nil {
		return err
	}

	leave.ID = id
	err = s.mutate(ctx, backup.ReasonLeaves, func(q store.Queries) error {
		return q.UpdateLeave(ctx, leave)
	})
	if err != nil {
		return err
	}
	s.changed(ctx, backup.ReasonLeaves, amqp.NewRecordsChangedMessage(amqp.EntityLeave, "update", leave.Year, 0, coach.CenterID), id)
	return nil
}

// DeleteLeave returns core.ErrNotFound for unknown ids.
func (s *LeaveService) DeleteLeave(ctx context.Context, id int64) error {
	leave, err := s.store.GetLeave(ctx, id)
	if err != nil {
		return fmt.Errorf("leave %d: %w", id, err)
	}
	err = s.mutate(ctx, backup.ReasonLeaves, func(q store.Queries) error {
		return q.DeleteLeave(ctx, id)
	})
	if err != nil {
		return err
	}
	s.changed(ctx, backup.ReasonLeaves, amqp.NewRecordsChangedMessage(amqp.EntityLeave, "delete", leave.Year, 0, 0), id)
	return nil
}
