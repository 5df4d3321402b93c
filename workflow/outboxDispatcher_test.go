package workflow

import (
	"errors"
	"testing"
	"time"

	mysqlDriver "github.com/go-sql-driver/mysql"
)

func TestPublishBackoff(t *testing.T) {
	cases := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{5, 80 * time.Second},
		{8, 10 * time.Minute},
		{20, 10 * time.Minute},
	}
	for _, tc := range cases {
		got := publishBackoff(5*time.Second, tc.attempt)
		if got != tc.want {
			t.Errorf("publishBackoff(5s, %d) = %v, want %v", tc.attempt, got, tc.want)
		}
	}
}

func TestIsDuplicateKeyErr(t *testing.T) {
	dup := &mysqlDriver.MySQLError{Number: 1062, Message: "Duplicate entry"}
	if !isDuplicateKeyErr(dup) {
		t.Error("1062 must be recognized as a duplicate key error")
	}
	if isDuplicateKeyErr(&mysqlDriver.MySQLError{Number: 1213}) {
		t.Error("deadlock error is not a duplicate key error")
	}
	if isDuplicateKeyErr(errors.New("broken pipe")) {
		t.Error("non-mysql error is not a duplicate key error")
	}
}
