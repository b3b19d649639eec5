package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/galaxykit-go/internal/galaxy"
)

func TestFormatList(t *testing.T) {
	records := []galaxy.Record{
		{"username": "jdoe", "email": "jdoe@example.com", "first_name": "", "is_superuser": false, "id": float64(3)},
		{"username": "admin", "is_superuser": true, "groups": []any{}},
		{"username": "ops", "groups": []any{map[string]any{"name": "ops"}}},
	}

	got := formatList(records, "username")

	assert.Equal(t, strings.Join([]string{
		"jdoe email=jdoe@example.com id=3",
		"admin is_superuser=true",
		`ops groups=[{"name":"ops"}]`,
	}, "\n"), got)
}

func TestFormatList_Empty(t *testing.T) {
	assert.Equal(t, "", formatList(nil, "name"))
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want bool
	}{
		{"nil", nil, false},
		{"false", false, false},
		{"zero", float64(0), false},
		{"empty string", "", false},
		{"empty list", []any{}, false},
		{"empty map", map[string]any{}, false},
		{"string", "x", true},
		{"number", float64(2), true},
		{"list", []any{1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, truthy(tt.v))
		})
	}
}

func TestToRecords(t *testing.T) {
	recs, err := toRecords([]galaxy.Remote{{Name: "community", URL: "https://galaxy.ansible.com/api/"}})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "community", recs[0].String("name"))
	assert.Equal(t, "community url=https://galaxy.ansible.com/api/", formatList(recs, "name"))
}

func TestFormatTime(t *testing.T) {
	now := time.Now().UTC()
	sameYear := time.Date(now.Year(), time.March, 15, 10, 30, 5, 0, time.UTC).Format(time.RFC3339Nano)

	t.Run("same year", func(t *testing.T) {
		result := formatTime(sameYear)
		assert.Contains(t, result, "Mar")
		assert.Contains(t, result, "10:30:05")
	})

	t.Run("different year", func(t *testing.T) {
		result := formatTime("2020-12-25T08:00:00.123456Z")
		assert.Contains(t, result, "Dec")
		assert.Contains(t, result, "2020")
	})

	t.Run("unparseable", func(t *testing.T) {
		assert.Equal(t, "yesterday", formatTime("yesterday"))
		assert.Equal(t, "", formatTime(""))
	})
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer

	headers := []string{"ID", "NAME", "STATE"}
	rows := [][]string{
		{"0189", "pulp_ansible.app.tasks.collections.import_collection", "completed"},
		{"02ab", "galaxy_ng.app.tasks.promotion.move_content", "running"},
	}

	printTable(&buf, headers, rows)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 3)
	assert.Contains(t, lines[0], "ID")
	assert.Contains(t, lines[0], "STATE")
	assert.Equal(t, strings.Index(lines[0], "STATE"), strings.Index(lines[1], "completed"))
	assert.Equal(t, strings.Index(lines[1], "completed"), strings.Index(lines[2], "running"))
}

func TestStatusf_Quiet(t *testing.T) {
	var buf bytes.Buffer

	statusf(&buf, true, "hidden %d\n", 1)
	assert.Empty(t, buf.String())

	statusf(&buf, false, "shown %d\n", 2)
	assert.Equal(t, "shown 2\n", buf.String())
}
