package criteria

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/artifex/service/dao"
)

func TestMatches(t *testing.T) {
	fields := map[string]string{dao.ParamState: "processing", dao.ParamBatchID: "7"}
	var testCases = []struct {
		description string
		parameters  []*dao.Parameter
		expect      bool
	}{
		{description: "no parameters", expect: true},
		{description: "single match", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamState, "processing")}, expect: true},
		{description: "single mismatch", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamState, "error")}, expect: false},
		{description: "alternatives", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamState, "error", "processing")}, expect: true},
		{description: "numeric value", parameters: []*dao.Parameter{{Name: dao.ParamBatchID, Value: 7}}, expect: true},
		{description: "all must match", parameters: []*dao.Parameter{dao.NewParameter(dao.ParamState, "processing"), {Name: dao.ParamBatchID, Value: int64(8)}}, expect: false},
		{description: "unknown field ignored", parameters: []*dao.Parameter{dao.NewParameter("Other", "x")}, expect: true},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.expect, Matches(fields, testCase.parameters), testCase.description)
	}
	assert.True(t, FilterByState("finished", []*dao.Parameter{dao.NewParameter(dao.ParamState, "finished")}))
}
