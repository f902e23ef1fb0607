package markdown_test

import (
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/echovault/internal/markdown"
	"github.com/go-ports/echovault/internal/model"
)

func TestRenderMemory_HappyPath(t *testing.T) {
	c := qt.New(t)

	cases := []struct {
		name string
		mem  *model.Memory
		want string
	}{
		{
			name: "minimal",
			mem:  &model.Memory{Kind: model.KindEpisodic, Content: "bought milk", Importance: 0.5},
			want: "### episodic\n**Content:** bought milk\n**Importance:** 0.50",
		},
		{
			name: "with tags",
			mem:  &model.Memory{Kind: model.KindSemantic, Content: "Go uses GC", Importance: 0.8, Tags: []string{"go", "gc"}},
			want: "### semantic\n**Content:** Go uses GC\n**Importance:** 0.80\n**Tags:** gc, go",
		},
		{
			name: "with source and pinned",
			mem: &model.Memory{
				Kind: model.KindProcedural, Content: "run make test", Importance: 1,
				Source: "user", Pinned: true,
			},
			want: "### procedural\n**Content:** run make test\n**Importance:** 1.00\n**Source:** user\n**Pinned**",
		},
	}

	for _, tc := range cases {
		c.Run(tc.name, func(c *qt.C) {
			got := markdown.RenderMemory(tc.mem)
			c.Assert(got, qt.Equals, tc.want)
		})
	}
}

func TestRenderResults_JoinsWithBlankLine(t *testing.T) {
	c := qt.New(t)
	mems := []*model.Memory{
		{Kind: model.KindWorking, Content: "a", Importance: 0.1},
		{Kind: model.KindWorking, Content: "b", Importance: 0.2},
	}
	got := markdown.RenderResults(mems)
	c.Assert(got, qt.Equals, "### working\n**Content:** a\n**Importance:** 0.10\n\n### working\n**Content:** b\n**Importance:** 0.20")
}

func TestRenderResults_Empty(t *testing.T) {
	c := qt.New(t)
	c.Assert(markdown.RenderResults(nil), qt.Equals, "")
}
