package upload

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/taro8383/duracalm-proxy/core"
	"github.com/taro8383/duracalm-proxy/transport"
)

// Phase names, carried in error metadata so a failed run names the step that
// broke.
const (
	PhaseStagedUpload = "staged_upload"
	PhaseBinaryUpload = "binary_upload"
	PhaseFileFinalize = "file_finalize"
)

const defaultMimeType = "image/jpeg"

const stagedUploadsCreateMutation = `mutation stagedUploadsCreate($input: [StagedUploadInput!]!) {
  stagedUploadsCreate(input: $input) {
    stagedTargets {
      url
      resourceUrl
      parameters {
        name
        value
      }
    }
    userErrors {
      field
      message
    }
  }
}`

const fileCreateMutation = `mutation fileCreate($files: [FileCreateInput!]!) {
  fileCreate(files: $files) {
    files {
      id
      ... on MediaImage {
        image {
          url
        }
      }
      preview {
        image {
          url
        }
      }
    }
    userErrors {
      field
      message
    }
  }
}`

// GraphQLExecutor is the slice of the transport layer the pipeline needs;
// tests drive it with fakes.
type GraphQLExecutor interface {
	Execute(ctx context.Context, req transport.GraphQLRequest) (transport.GraphQLResult, error)
}

// Pipeline runs the three-phase staged upload: reserve a signed target,
// post the bytes to it, then register the uploaded blob as a platform file.
// Phases run strictly in order and the first failure aborts the run; there
// is no cleanup of earlier phases, the operator simply re-runs.
type Pipeline struct {
	graphql GraphQLExecutor
	rest    *transport.RESTAdapter
	timeout time.Duration
}

func NewPipeline(graphql GraphQLExecutor, client transport.HTTPDoer, timeout time.Duration) *Pipeline {
	return &Pipeline{
		graphql: graphql,
		rest:    transport.NewRESTAdapter(client),
		timeout: timeout,
	}
}

type stagedUploadsCreatePayload struct {
	Data struct {
		StagedUploadsCreate struct {
			StagedTargets []struct {
				URL         string `json:"url"`
				ResourceURL string `json:"resourceUrl"`
				Parameters  []struct {
					Name  string `json:"name"`
					Value string `json:"value"`
				} `json:"parameters"`
			} `json:"stagedTargets"`
			UserErrors []graphqlUserError `json:"userErrors"`
		} `json:"stagedUploadsCreate"`
	} `json:"data"`
	Errors []graphqlTopLevelError `json:"errors"`
}

type fileCreatePayload struct {
	Data struct {
		FileCreate struct {
			Files []struct {
				ID    string `json:"id"`
				Image struct {
					URL string `json:"url"`
				} `json:"image"`
				Preview struct {
					Image struct {
						URL string `json:"url"`
					} `json:"image"`
				} `json:"preview"`
			} `json:"files"`
			UserErrors []graphqlUserError `json:"userErrors"`
		} `json:"fileCreate"`
	} `json:"data"`
	Errors []graphqlTopLevelError `json:"errors"`
}

type graphqlUserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type graphqlTopLevelError struct {
	Message string `json:"message"`
}

// Run executes the pipeline for one file.
func (p *Pipeline) Run(ctx context.Context, req core.UploadRequest) (core.UploadResult, error) {
	if p == nil || p.graphql == nil || p.rest == nil {
		return core.UploadResult{}, core.InternalError("upload: pipeline is not configured", nil)
	}
	if strings.TrimSpace(req.MimeType) == "" {
		req.MimeType = defaultMimeType
	}
	if err := req.Validate(); err != nil {
		return core.UploadResult{}, core.WrapError(err, goerrors.CategoryBadInput,
			"upload: invalid upload request", http.StatusBadRequest, core.ProxyErrorBadInput, nil)
	}

	target, err := p.createStagedTarget(ctx, req)
	if err != nil {
		return core.UploadResult{}, err
	}
	if err := p.postBinary(ctx, req, target); err != nil {
		return core.UploadResult{}, err
	}
	file, err := p.finalizeFile(ctx, req, target)
	if err != nil {
		return core.UploadResult{}, err
	}

	resultURL := file.PreviewURL
	if strings.TrimSpace(resultURL) == "" {
		resultURL = target.ResourceURL
	}
	return core.UploadResult{
		FileID:     file.ID,
		URL:        resultURL,
		PreviewURL: file.PreviewURL,
	}, nil
}

func (p *Pipeline) createStagedTarget(ctx context.Context, req core.UploadRequest) (core.StagedUploadTarget, error) {
	result, err := p.graphql.Execute(ctx, transport.GraphQLRequest{
		Credential: req.Credential,
		ShopDomain: req.ShopDomain,
		Query:      stagedUploadsCreateMutation,
		Variables: map[string]any{
			"input": []map[string]any{{
				"filename":   req.Filename,
				"mimeType":   req.MimeType,
				"resource":   "IMAGE",
				"fileSize":   strconv.Itoa(len(req.Data)),
				"httpMethod": "POST",
			}},
		},
		Timeout: p.timeout,
	})
	if err != nil {
		return core.StagedUploadTarget{}, phaseWrapError(err, PhaseStagedUpload,
			"upload: staged upload request failed", core.ProxyErrorStagedUploadFailed, nil)
	}

	var payload stagedUploadsCreatePayload
	if err := decodePayload(result.Payload, &payload); err != nil {
		return core.StagedUploadTarget{}, phaseWrapError(err, PhaseStagedUpload,
			"upload: decode staged upload response", core.ProxyErrorStagedUploadFailed,
			map[string]any{"status_code": result.StatusCode})
	}
	if details := upstreamFailureDetails(result.StatusCode, payload.Errors,
		payload.Data.StagedUploadsCreate.UserErrors); details != nil {
		return core.StagedUploadTarget{}, phaseError(PhaseStagedUpload,
			"upload: staged upload was rejected upstream", core.ProxyErrorStagedUploadFailed, details)
	}

	targets := payload.Data.StagedUploadsCreate.StagedTargets
	if len(targets) == 0 {
		return core.StagedUploadTarget{}, phaseError(PhaseStagedUpload,
			"upload: no staged upload target returned", core.ProxyErrorStagedUploadFailed,
			map[string]any{"status_code": result.StatusCode})
	}

	staged := targets[0]
	target := core.StagedUploadTarget{
		UploadURL:   staged.URL,
		ResourceURL: staged.ResourceURL,
	}
	for _, parameter := range staged.Parameters {
		target.Parameters = append(target.Parameters, core.UploadParameter{
			Name:  parameter.Name,
			Value: parameter.Value,
		})
	}
	if err := target.Validate(); err != nil {
		return core.StagedUploadTarget{}, phaseError(PhaseStagedUpload,
			"upload: staged upload target is incomplete", core.ProxyErrorStagedUploadFailed,
			map[string]any{"details": err.Error()})
	}
	return target, nil
}

func (p *Pipeline) postBinary(ctx context.Context, req core.UploadRequest, target core.StagedUploadTarget) error {
	form, err := transport.NewFormDataEncoder().Encode(target.Parameters, transport.FilePart{
		FieldName:   "file",
		Filename:    req.Filename,
		ContentType: req.MimeType,
		Data:        req.Data,
	})
	if err != nil {
		return phaseWrapError(err, PhaseBinaryUpload,
			"upload: encode upload form", core.ProxyErrorBinaryUploadFailed, nil)
	}

	response, err := p.rest.Do(ctx, transport.Request{
		Method:  http.MethodPost,
		URL:     target.UploadURL,
		Headers: map[string]string{"Content-Type": form.ContentType},
		Body:    form.Body,
		Timeout: p.timeout,
	})
	if err != nil {
		return phaseWrapError(err, PhaseBinaryUpload,
			"upload: binary upload request failed", core.ProxyErrorBinaryUploadFailed, nil)
	}
	if response.StatusCode < 200 || response.StatusCode > 299 {
		return phaseError(PhaseBinaryUpload,
			"upload: binary upload was rejected", core.ProxyErrorBinaryUploadFailed,
			map[string]any{
				"status_code": response.StatusCode,
				"details":     string(response.Body),
			})
	}
	return nil
}

func (p *Pipeline) finalizeFile(ctx context.Context, req core.UploadRequest, target core.StagedUploadTarget) (core.RemoteFile, error) {
	result, err := p.graphql.Execute(ctx, transport.GraphQLRequest{
		Credential: req.Credential,
		ShopDomain: req.ShopDomain,
		Query:      fileCreateMutation,
		Variables: map[string]any{
			"files": []map[string]any{{
				"alt":            req.Filename,
				"contentType":    "IMAGE",
				"originalSource": target.ResourceURL,
			}},
		},
		Timeout: p.timeout,
	})
	if err != nil {
		return core.RemoteFile{}, phaseWrapError(err, PhaseFileFinalize,
			"upload: file create request failed", core.ProxyErrorFileFinalizeFailed, nil)
	}

	var payload fileCreatePayload
	if err := decodePayload(result.Payload, &payload); err != nil {
		return core.RemoteFile{}, phaseWrapError(err, PhaseFileFinalize,
			"upload: decode file create response", core.ProxyErrorFileFinalizeFailed,
			map[string]any{"status_code": result.StatusCode})
	}
	if details := upstreamFailureDetails(result.StatusCode, payload.Errors,
		payload.Data.FileCreate.UserErrors); details != nil {
		return core.RemoteFile{}, phaseError(PhaseFileFinalize,
			"upload: file create was rejected upstream", core.ProxyErrorFileFinalizeFailed, details)
	}

	files := payload.Data.FileCreate.Files
	if len(files) == 0 || strings.TrimSpace(files[0].ID) == "" {
		return core.RemoteFile{}, phaseError(PhaseFileFinalize,
			"upload: no file record returned", core.ProxyErrorFileFinalizeFailed,
			map[string]any{"status_code": result.StatusCode})
	}

	previewURL := files[0].Image.URL
	if strings.TrimSpace(previewURL) == "" {
		previewURL = files[0].Preview.Image.URL
	}
	return core.RemoteFile{
		ID:         files[0].ID,
		PreviewURL: previewURL,
	}, nil
}

func decodePayload(payload map[string]any, out any) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func upstreamFailureDetails(statusCode int, topLevel []graphqlTopLevelError, userErrors []graphqlUserError) map[string]any {
	messages := make([]string, 0, len(topLevel)+len(userErrors))
	for _, item := range topLevel {
		if strings.TrimSpace(item.Message) != "" {
			messages = append(messages, item.Message)
		}
	}
	for _, item := range userErrors {
		if strings.TrimSpace(item.Message) != "" {
			messages = append(messages, item.Message)
		}
	}
	httpFailed := statusCode != 0 && (statusCode < 200 || statusCode > 299)
	if !httpFailed && len(topLevel) == 0 && len(userErrors) == 0 {
		return nil
	}
	details := map[string]any{"status_code": statusCode}
	if len(messages) > 0 {
		details["details"] = strings.Join(messages, "; ")
	}
	return details
}

// phaseError reports an upstream rejection or malformed upstream payload.
// These surface as 400s, matching the proxy's contract; only transport or
// decode failures (phaseWrapError) are 500s.
func phaseError(phase string, message string, textCode string, metadata map[string]any) error {
	merged := map[string]any{"phase": phase}
	for key, value := range metadata {
		merged[key] = value
	}
	return core.NewError(message, goerrors.CategoryExternal,
		http.StatusBadRequest, textCode, merged)
}

func phaseWrapError(source error, phase string, message string, textCode string, metadata map[string]any) error {
	merged := map[string]any{"phase": phase}
	for key, value := range metadata {
		merged[key] = value
	}
	return core.WrapError(source, goerrors.CategoryExternal, message,
		http.StatusInternalServerError, textCode, merged)
}
