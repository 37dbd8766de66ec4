package service

import (
	"fmt"
	"regexp"
)

// tableNameRE mirrors spec.md §6's table-name contract invariant.
var tableNameRE = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

const maxBatchSubmit = 20

// validatePriority mirrors the teacher's validateDisplayCurrency style:
// one small fail-fast check per invariant, named for what it checks.
func validatePriority(p int) error {
	if p < 1 || p > 5 {
		return fmt.Errorf("priority must be in [1,5], got %d", p)
	}
	return nil
}

func validateEstimatedSlots(n int) error {
	if n < 1 || n > 10 {
		return fmt.Errorf("estimated_slots must be in [1,10], got %d", n)
	}
	return nil
}

func validateMaxExecSecs(s int) error {
	if s < 1 || s > 3600 {
		return fmt.Errorf("max_exec_s must be in [1,3600], got %d", s)
	}
	return nil
}

func validateBatchSize(n int) error {
	if n < 1 || n > 10000 {
		return fmt.Errorf("batch_size must be in [1,10000], got %d", n)
	}
	return nil
}

func validateTableName(name string) error {
	if !tableNameRE.MatchString(name) {
		return fmt.Errorf("table name %q does not match %s", name, tableNameRE.String())
	}
	return nil
}

func validateSQL(sql string) error {
	if sql == "" {
		return fmt.Errorf("sql must not be empty")
	}
	return nil
}

// validateSubmitQuery runs every numeric/structural invariant for
// submit_query before the request reaches the scheduler.
func validateSubmitQuery(sql string, priority, estimatedSlots, maxExecSecs int) error {
	if err := validateSQL(sql); err != nil {
		return err
	}
	if err := validatePriority(priority); err != nil {
		return err
	}
	if err := validateEstimatedSlots(estimatedSlots); err != nil {
		return err
	}
	if err := validateMaxExecSecs(maxExecSecs); err != nil {
		return err
	}
	return nil
}

// validateBatchSubmit enforces the batch-submit cap of spec.md §6.
func validateBatchSubmit(n int) error {
	if n > maxBatchSubmit {
		return fmt.Errorf("batch submit accepts at most %d queries, got %d", maxBatchSubmit, n)
	}
	return nil
}
