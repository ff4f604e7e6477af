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

const (
	defaultCenterName = "New Center"
	unknownCenterName = "Unknown"
	maxNameLen        = 100
)

type CenterService struct {
	manager
}

func NewCenterService(d Deps) *CenterService {
	return &CenterService{manager: newManager(d)}
}

// AddCenter creates a center together with its first, empty, monthly record.
func (s *CenterService) AddCenter(ctx context.Context, name string, month core.Month, year int) (core.Center, error) {
	if !month.Valid() {
		return core.Center{}, core.Invalid("month", "month must be a calendar month")
	}
	name = core.SanitizeInput(name, maxNameLen)
	if name == "" {
		name = defaultCenterName
	}

	var center core.Center
	err := s.mutate(ctx, backup.ReasonAddCenter, func(q store.Queries) error {
		id, err := q.CreateCenter(ctx, name)
		if err != nil {
			return err
		}
		center = core.Center{ID: id, Name: name}
		_, err = q.InsertMonthlyRecord(ctx, core.MonthlyRecord{CenterID: id, Month: month, Year: year})
		return err
	})
	if err != nil {
		return core.Center{}, err
	}
	s.changed(ctx, backup.ReasonAddCenter, amqp.NewRecordsChangedMessage(amqp.EntityCenter, "create", year, int(month), center.ID), center.ID)
	return center, nil
}

// RenameCenter is a no-op for unknown ids and blank names.
func (s *CenterService) RenameCenter(ctx context.Context, id int64, name string) error {
	name = core.SanitizeInput(name, maxNameLen)
	if name == "" {
		return nil
	}
	if _, err := s.store.GetCenter(ctx, id); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return err
	}
	err := s.mutate(ctx, backup.ReasonDashboard, func(q store.Queries) error {
		return q.RenameCenter(ctx, id, name)
	})
	if err != nil {
		return err
	}
	s.changed(ctx, backup.ReasonDashboard, amqp.NewRecordsChangedMessage(amqp.EntityCenter, "update", 0, 0, id), id)
	return nil
}

// MonthInput is the dashboard grid keyed by center id. Missing or blank
// entries keep the stored value.
type MonthInput struct {
	Names   map[int64]string
	Revenue map[int64]string
	Target  map[int64]string
}

// SaveMonth applies the dashboard grid to every center visible in
// month/year. All numbers are parsed before anything is written.
func (s *CenterService) SaveMonth(ctx context.Context, month core.Month, year int, in MonthInput) error {
	if !month.Valid() {
		return core.Invalid("month", "month must be a calendar month")
	}
	centers, err := s.store.ListCentersForMonth(ctx, month, year)
	if err != nil {
		return fmt.Errorf("save month: %w", err)
	}

	type change struct {
		name            string
		revenue, target *float64
	}
	changes := make(map[int64]change, len(centers))
	var fields []core.FieldError
	for _, c := range centers {
		var ch change
		ch.name = core.SanitizeInput(in.Names[c.ID], maxNameLen)
		if v, ok, err := core.ParseAmount(in.Revenue[c.ID]); err != nil {
			fields = append(fields, core.FieldError{Field: fmt.Sprintf("revenue%d", c.ID), Error: fmt.Sprintf("Invalid revenue for %s", c.Name)})
		} else if ok {
			ch.revenue = &v
		}
		if v, ok, err := core.ParseAmount(in.Target[c.ID]); err != nil {
			fields = append(fields, core.FieldError{Field: fmt.Sprintf("target%d", c.ID), Error: fmt.Sprintf("Invalid target for %s", c.Name)})
		} else if ok {
			ch.target = &v
		}
		changes[c.ID] = ch
	}
	if len(fields) > 0 {
		return core.NewValidationError(core.ErrInvalidAmount, fields...)
	}

	err = s.mutate(ctx, backup.ReasonDashboard, func(q store.Queries) error {
		for _, c := range centers {
			ch := changes[c.ID]
			if ch.name != "" && ch.name != c.Name {
				if err := q.RenameCenter(ctx, c.ID, ch.name); err != nil {
					return err
				}
			}
			if ch.revenue == nil && ch.target == nil {
				continue
			}
			rec, err := q.GetMonthlyRecord(ctx, c.ID, month, year)
			if err != nil {
				return err
			}
			if ch.revenue != nil {
				rec.Revenue = *ch.revenue
			}
			if ch.target != nil {
				rec.Target = *ch.target
			}
			if err := q.UpdateMonthlyRecord(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.changed(ctx, backup.ReasonDashboard, amqp.NewRecordsChangedMessage(amqp.EntityRecord, "update", year, int(month), 0), 0)
	return nil
}

// DeleteCenter removes the center with its records, coaches, their salaries
// and leaves. An unknown id changes nothing and returns core.ErrNotFound.
func (s *CenterService) DeleteCenter(ctx context.Context, id int64) error {
	if _, err := s.store.GetCenter(ctx, id); err != nil {
		return fmt.Errorf("center %d: %w", id, err)
	}
	err := s.mutate(ctx, backup.ReasonDeleteCenter, func(q store.Queries) error {
		coaches, err := q.ListCoaches(ctx, store.CoachFilter{CenterID: id})
		if err != nil {
			return err
		}
		for _, c := range coaches {
			if _, err := q.DeleteSalaries(ctx, store.SalaryFilter{CoachID: c.ID}); err != nil {
				return err
			}
			if _, err := q.DeleteLeavesByCoach(ctx, c.ID); err != nil {
				return err
			}
		}
		if _, err := q.DeleteCoachesByCenter(ctx, id); err != nil {
			return err
		}
		if _, err := q.DeleteMonthlyRecords(ctx, store.RecordFilter{CenterID: id}); err != nil {
			return err
		}
		return q.DeleteCenter(ctx, id)
	})
	if err != nil {
		return err
	}
	s.changed(ctx, backup.ReasonDeleteCenter, amqp.NewRecordsChangedMessage(amqp.EntityCenter, "delete", 0, 0, id), id)
	return nil
}

// RemoveResult reports what RemoveCenterMonth deleted.
type RemoveResult struct {
	CenterName string
	Records    int64
	Salaries   int64
}

// RemoveCenterMonth deletes one month's record of the center and that
// month's salaries of its coaches. The center and its coaches stay.
func (s *CenterService) RemoveCenterMonth(ctx context.Context, id int64, month core.Month, year int) (RemoveResult, error) {
	if !month.Valid() {
		return RemoveResult{}, core.Invalid("month", "month must be a calendar month")
	}
	res := RemoveResult{CenterName: unknownCenterName}
	c, err := s.store.GetCenter(ctx, id)
	switch {
	case err == nil:
		res.CenterName = c.Name
	case !errors.Is(err, core.ErrNotFound):
		return res, err
	}

	err = s.mutate(ctx, backup.ReasonRemoveCenterMonth, func(q store.Queries) error {
		var err error
		res.Records, err = q.DeleteMonthlyRecords(ctx, store.RecordFilter{CenterID: id, Month: month, Year: year})
		if err != nil {
			return err
		}
		res.Salaries, err = q.DeleteSalaries(ctx, store.SalaryFilter{CenterID: id, Month: month, Year: year})
		return err
	})
	if err != nil {
		return res, err
	}
	s.changed(ctx, backup.ReasonRemoveCenterMonth, amqp.NewRecordsChangedMessage(amqp.EntityRecord, "delete", year, int(month), id), id)
	return res, nil
}

