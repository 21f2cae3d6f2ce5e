package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/grpc-ecosystem/grpc-gateway/v2/runtime"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rishansujesh/job-registry/internal/common/errs"
	"github.com/rishansujesh/job-registry/internal/common/health"
	"github.com/rishansujesh/job-registry/internal/common/requestid"
	"github.com/rishansujesh/job-registry/internal/descriptors"
	"github.com/rishansujesh/job-registry/internal/master"
	"github.com/rishansujesh/job-registry/internal/protocol"
)

const maxBodyBytes = 1 << 20

// NewGateway returns a REST mux translating /v1/jobs routes into calls on srv.
func NewGateway(srv JobServiceServer) (*runtime.ServeMux, error) {
	mux := runtime.NewServeMux()
	routes := []struct {
		method  string
		pattern string
		handler runtime.HandlerFunc
	}{
		{http.MethodPost, "/v1/jobs", createJobHandler(srv)},
		{http.MethodGet, "/v1/jobs", listJobsHandler(srv)},
		{http.MethodGet, "/v1/jobs/{name}/{version}/{hash}", getJobHandler(srv)},
		{http.MethodDelete, "/v1/jobs/{name}/{version}/{hash}", deleteJobHandler(srv)},
	}
	for _, route := range routes {
		if err := mux.HandlePath(route.method, route.pattern, withRequestID(route.handler)); err != nil {
			return nil, errors.Wrapf(err, "registering %s %s", route.method, route.pattern)
		}
	}
	return mux, nil
}

// NewHTTPHandler serves the REST gateway under /v1/ next to the health and
// metrics endpoints.
func NewHTTPHandler(srv JobServiceServer, ready health.Checker) (http.Handler, error) {
	gateway, err := NewGateway(srv)
	if err != nil {
		return nil, err
	}
	mux := health.NewMux("master", ready)
	mux.Handle("/v1/", gateway)
	return mux, nil
}

func withRequestID(h runtime.HandlerFunc) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		id := r.Header.Get(requestid.MetadataKey)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(requestid.MetadataKey, id)
		ctx := requestid.AddToIncomingContext(r.Context(), id)
		h(w, r.WithContext(ctx), params)
	}
}

var createStatusCodes = map[protocol.CreateJobStatus]int{
	protocol.StatusOK:                   http.StatusCreated,
	protocol.StatusIDMismatch:           http.StatusBadRequest,
	protocol.StatusJobAlreadyExists:     http.StatusConflict,
	protocol.StatusInvalidJobDefinition: http.StatusBadRequest,
}

func createJobHandler(srv JobServiceServer) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			writeError(r.Context(), w, &errs.ErrInvalidArgument{Name: "body", Value: "", Message: err.Error()})
			return
		}
		req := &structpb.Struct{}
		if err := protojson.Unmarshal(body, req); err != nil {
			resp := master.InvalidDefinition("Job descriptor is not a JSON object: " + err.Error())
			writeJSON(w, http.StatusBadRequest, resp)
			return
		}
		out, err := srv.CreateJob(r.Context(), req)
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		var resp protocol.CreateJobResponse
		if err := protocol.FromStruct(out, &resp); err != nil {
			writeError(r.Context(), w, err)
			return
		}
		writeJSON(w, createStatusCodes[resp.Status], resp)
	}
}

func listJobsHandler(srv JobServiceServer) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, _ map[string]string) {
		query := r.URL.Query()
		req := protocol.ListJobsRequest{NameContains: query.Get("name_contains")}
		for field, dst := range map[string]*int{"limit": &req.Limit, "offset": &req.Offset} {
			raw := query.Get(field)
			if raw == "" {
				continue
			}
			n, err := strconv.Atoi(raw)
			if err != nil {
				writeError(r.Context(), w, &errs.ErrInvalidArgument{Name: field, Value: raw, Message: "not an integer"})
				return
			}
			*dst = n
		}
		forward(w, r, srv.ListJobs, req, http.StatusOK)
	}
}

func getJobHandler(srv JobServiceServer) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		forward(w, r, srv.GetJob, pathRef(params), http.StatusOK)
	}
}

func deleteJobHandler(srv JobServiceServer) runtime.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request, params map[string]string) {
		out, err := call(r.Context(), srv.DeleteJob, pathRef(params))
		if err != nil {
			writeError(r.Context(), w, err)
			return
		}
		var resp protocol.JobDeleteResponse
		if err := protocol.FromStruct(out, &resp); err != nil {
			writeError(r.Context(), w, err)
			return
		}
		code := http.StatusOK
		if resp.Status == protocol.DeleteStatusJobNotFound {
			code = http.StatusNotFound
		}
		writeJSON(w, code, resp)
	}
}

func pathRef(params map[string]string) protocol.JobRef {
	return protocol.JobRef{
		ID: descriptors.NewJobID(params["name"], params["version"], params["hash"]).String(),
	}
}

type rpc func(context.Context, *structpb.Struct) (*structpb.Struct, error)

func call(ctx context.Context, method rpc, req any) (*structpb.Struct, error) {
	in, err := protocol.ToStruct(req)
	if err != nil {
		return nil, err
	}
	return method(ctx, in)
}

func forward(w http.ResponseWriter, r *http.Request, method rpc, req any, code int) {
	out, err := call(r.Context(), method, req)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	b, err := protocol.StructJSON(out)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(b)
}

type errorBody struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
}

func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := errs.CodeFromError(errors.Cause(err))
	httpStatus := runtime.HTTPStatusFromCode(code)
	id := requestid.FromContextOrMissing(ctx)
	if code == codes.Unknown || code == codes.Internal {
		log.WithError(err).WithField("requestId", id).Error("REST request failed")
	}
	writeJSON(w, httpStatus, errorBody{
		Error:     errors.Cause(err).Error(),
		Code:      code.String(),
		RequestID: id,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
