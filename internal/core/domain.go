package core

// TargetSalaryRatio is the share of a month's target that coach salaries
// are expected to represent. Targets are derived as salary / ratio.
const TargetSalaryRatio = 0.299

type (
	Center struct {
		ID   int64  `db:"id"`
		Name string `db:"name"`
	}

	// MonthlyRecord is one center's revenue/target pair for a month.
	// (CenterID, Month, Year) is unique.
	MonthlyRecord struct {
		ID       int64   `db:"id"`
		CenterID int64   `db:"center_id"`
		Month    Month   `db:"month"`
		Year     int     `db:"year"`
		Revenue  float64 `db:"revenue"`
		Target   float64 `db:"target"`
	}

	Coach struct {
		ID       int64  `db:"id"`
		Name     string `db:"name"`
		CenterID int64  `db:"center_id"`
	}

	CoachSalary struct {
		ID      int64   `db:"id"`
		CoachID int64   `db:"coach_id"`
		Month   Month   `db:"month"`
		Year    int     `db:"year"`
		Salary  float64 `db:"salary"`
	}

	CoachLeave struct {
		ID        int64     `db:"id"`
		CoachID   int64     `db:"coach_id"`
		FromDate  Date      `db:"from_date"`
		ToDate    Date      `db:"to_date"`
		LeaveType LeaveType `db:"leave_type"`
		Remarks   string    `db:"remarks"`
		Year      int       `db:"year"`
	}

	// LeaveEntry is a leave joined with the names of its coach and center.
	LeaveEntry struct {
		CoachLeave
		CoachName  string `db:"coach_name"`
		CenterID   int64  `db:"center_id"`
		CenterName string `db:"center_name"`
	}

	User struct {
		ID           int64  `db:"id"`
		Username     string `db:"username"`
		PasswordHash string `db:"password_hash"`
	}
)

// Days returns the inclusive length of the leave.
func (l CoachLeave) Days() int {
	return LeaveDays(l.FromDate, l.ToDate)
}

// DerivedTarget returns the target implied by a month's total coach salary,
// rounded to two decimals. Zero salary yields zero.
func DerivedTarget(totalSalary float64) float64 {
	if totalSalary <= 0 {
		return 0
	}
	return Round2(totalSalary / TargetSalaryRatio)
}

// Percent returns part/whole*100 rounded to one decimal, or 0 when whole is not positive.
func Percent(part, whole float64) float64 {
	if whole <= 0 {
		return 0
	}
	return Round1(part / whole * 100)
}
