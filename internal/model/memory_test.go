package model_test

import (
	"testing"
	"time"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/echovault/internal/model"
)

func TestMemory_Validate(t *testing.T) {
	c := qt.New(t)

	now := time.Now().UTC()
	tests := []struct {
		name    string
		mem     model.Memory
		wantErr error
	}{
		{
			name: "valid",
			mem: model.Memory{
				ID: "m1", Content: "hello world", Importance: 0.5,
				CreatedAt: now, LastAccessedAt: now,
			},
		},
		{
			name:    "empty content",
			mem:     model.Memory{ID: "m1", Importance: 0.5, CreatedAt: now},
			wantErr: model.ErrEmptyContent,
		},
		{
			name: "importance out of range",
			mem: model.Memory{
				ID: "m1", Content: "x", Importance: 1.5, CreatedAt: now,
			},
			wantErr: model.ErrImportanceRange,
		},
		{
			name: "negative importance",
			mem: model.Memory{
				ID: "m1", Content: "x", Importance: -0.1, CreatedAt: now,
			},
			wantErr: model.ErrImportanceRange,
		},
		{
			name: "accessed before created",
			mem: model.Memory{
				ID: "m1", Content: "x", Importance: 0.5,
				CreatedAt: now, LastAccessedAt: now.Add(-time.Hour),
			},
			wantErr: model.ErrAccessBeforeCreate,
		},
	}

	for _, tt := range tests {
		tt := tt
		c.Run(tt.name, func(c *qt.C) {
			err := tt.mem.Validate()
			if tt.wantErr == nil {
				c.Assert(err, qt.IsNil)
			} else {
				c.Assert(err, qt.ErrorIs, tt.wantErr)
			}
		})
	}
}

func TestMemory_TouchAccessed(t *testing.T) {
	c := qt.New(t)
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	mem := model.Memory{ID: "m1", CreatedAt: created}

	touched := mem.TouchAccessed(created.Add(time.Hour))
	c.Assert(touched.LastAccessedAt, qt.Equals, created.Add(time.Hour))

	// A touch earlier than CreatedAt clamps to CreatedAt.
	touched = mem.TouchAccessed(created.Add(-time.Hour))
	c.Assert(touched.LastAccessedAt, qt.Equals, created)
}

func TestKind_Valid(t *testing.T) {
	c := qt.New(t)
	c.Assert(model.KindWorking.Valid(), qt.IsTrue)
	c.Assert(model.KindEpisodic.Valid(), qt.IsTrue)
	c.Assert(model.KindSemantic.Valid(), qt.IsTrue)
	c.Assert(model.KindProcedural.Valid(), qt.IsTrue)
	c.Assert(model.Kind("bogus").Valid(), qt.IsFalse)
}

func TestPrivacy_Valid(t *testing.T) {
	c := qt.New(t)
	c.Assert(model.PrivacyPrivate.Valid(), qt.IsTrue)
	c.Assert(model.PrivacyTeam.Valid(), qt.IsTrue)
	c.Assert(model.PrivacyPublic.Valid(), qt.IsTrue)
	c.Assert(model.Privacy("bogus").Valid(), qt.IsFalse)
}

func TestCleanupPlan_Counts(t *testing.T) {
	c := qt.New(t)
	plan := model.CleanupPlan{
		SoftDelete: []string{"a", "b"},
		HardDelete: []string{"c"},
		Review:     []string{"d", "e", "f"},
	}
	soft, hard, review := plan.Counts()
	c.Assert(soft, qt.Equals, 2)
	c.Assert(hard, qt.Equals, 1)
	c.Assert(review, qt.Equals, 3)
}

func TestCleanupPlan_MeanScore(t *testing.T) {
	c := qt.New(t)

	empty := model.CleanupPlan{}
	c.Assert(empty.MeanScore(), qt.Equals, 0.0)

	plan := model.CleanupPlan{Scores: map[string]float64{"a": 0.2, "b": 0.6}}
	c.Assert(plan.MeanScore(), qt.Equals, 0.4)
}
