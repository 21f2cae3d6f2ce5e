package protocol

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateJobResponse_JSON(t *testing.T) {
	resp := CreateJobResponse{
		Status: StatusInvalidJobDefinition,
		Errors: []string{"Id hash mismatch: deadbeef != 1085fb2d97e209f68bd325d08cb01601bd86b1cd"},
	}
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"INVALID_JOB_DEFINITION","errors":["Id hash mismatch: deadbeef != 1085fb2d97e209f68bd325d08cb01601bd86b1cd"]}`, string(b))

	var decoded CreateJobResponse
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, resp, decoded)
}

func TestCreateJobStatus_Names(t *testing.T) {
	assert.Equal(t, "OK", StatusOK.String())
	assert.Equal(t, "ID_MISMATCH", StatusIDMismatch.String())
	assert.Equal(t, "JOB_ALREADY_EXISTS", StatusJobAlreadyExists.String())
	assert.Equal(t, "INVALID_JOB_DEFINITION", StatusInvalidJobDefinition.String())
	assert.Equal(t, "CreateJobStatus(42)", CreateJobStatus(42).String())

	var s CreateJobStatus
	assert.Error(t, json.Unmarshal([]byte(`"NOPE"`), &s))
}

func TestJobDeleteResponse_JSON(t *testing.T) {
	b, err := json.Marshal(JobDeleteResponse{Status: DeleteStatusJobNotFound})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"JOB_NOT_FOUND"}`, string(b))
}

func TestStructConversion(t *testing.T) {
	req := ListJobsRequest{NameContains: "foo", Limit: 10, Offset: 20}
	s, err := ToStruct(req)
	require.NoError(t, err)
	assert.Equal(t, "foo", s.Fields["name_contains"].GetStringValue())
	assert.Equal(t, float64(10), s.Fields["limit"].GetNumberValue())

	var decoded ListJobsRequest
	require.NoError(t, FromStruct(s, &decoded))
	assert.Equal(t, req, decoded)
}

func TestFromStruct_Nil(t *testing.T) {
	var ref JobRef
	require.NoError(t, FromStruct(nil, &ref))
	assert.Equal(t, JobRef{}, ref)
}

func TestToStruct_RejectsNonObject(t *testing.T) {
	_, err := ToStruct([]string{"a"})
	assert.Error(t, err)
}
