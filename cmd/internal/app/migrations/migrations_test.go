package migrations

import "testing"

func TestRun_EmptyDSN(t *testing.T) {
	t.Parallel()

	if err := Run("", "up"); err == nil {
		t.Fatal("Run with empty DSN should return error")
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	t.Parallel()

	for _, dir := range []string{"", "sideways", "UP", "Down"} {
		if err := Run("postgres://localhost/test", dir); err == nil {
			t.Fatalf("Run with direction %q should return error", dir)
		}
	}
}
