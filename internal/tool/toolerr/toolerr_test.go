package toolerr_test

import (
	"errors"
	"testing"

	qt "github.com/frankban/quicktest"

	"github.com/go-ports/echovault/internal/tool/toolerr"
)

func TestTranslate_MatchesTableEntry(t *testing.T) {
	c := qt.New(t)
	sentinel := errors.New("not found")
	table := toolerr.Table{sentinel: toolerr.CodeNotFound}

	got := toolerr.Translate(sentinel, table)
	c.Assert(got.Code, qt.Equals, toolerr.CodeNotFound)
}

func TestTranslate_FallsBackToInternal(t *testing.T) {
	c := qt.New(t)
	got := toolerr.Translate(errors.New("whatever"), toolerr.Table{})
	c.Assert(got.Code, qt.Equals, toolerr.CodeInternal)
}

func TestTranslate_NilErrReturnsNil(t *testing.T) {
	c := qt.New(t)
	c.Assert(toolerr.Translate(nil, nil), qt.IsNil)
}

func TestTranslate_PassesThroughExistingToolError(t *testing.T) {
	c := qt.New(t)
	wrapped := toolerr.Invalid("bad input")
	got := toolerr.Translate(wrapped, toolerr.Table{})
	c.Assert(got.Code, qt.Equals, toolerr.CodeInvalidInput)
}
