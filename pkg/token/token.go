// Copyright (c) 2025, NVIDIA CORPORATION.  All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package token requests user tokens from the Velt token API on behalf of the host application.
package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/nvidia/nvsentinel/annotation-store/pkg/config"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/metrics"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/model"
	"github.com/nvidia/nvsentinel/annotation-store/pkg/services"
)

const (
	headerAPIKey    = "x-velt-api-key"
	headerAuthToken = "x-velt-auth-token"

	defaultAPIErrorMessage = "Failed to generate token"
)

// result labels of metrics.TokenRequestsTotal
const (
	resultSuccess      = "success"
	resultInvalidInput = "invalid_input"
	resultConfigError  = "config_error"
	resultAPIError     = "api_error"
	resultNoToken      = "no_token"
	resultNetworkError = "network_error"
)

// Error is returned when the token API could not be reached or answered with an unreadable body
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Service calls the token API with the configured credentials
type Service struct {
	endpoint  string
	apiKey    string
	authToken string
	client    *retryablehttp.Client
}

// NewService creates a token service. Credentials are resolved once, from config or environment.
func NewService(cfg *config.Config) *Service {
	c := retryablehttp.NewClient()
	c.Logger = slog.With("http", "retryablehttp-client")
	c.RetryMax = cfg.TokenRetryMax()
	// return the last response once retries are exhausted
	c.ErrorHandler = retryablehttp.PassthroughErrorHandler

	timeout := cfg.Token.Timeout
	if timeout <= 0 {
		timeout = config.DefaultTokenTimeout
	}

	c.HTTPClient.Timeout = timeout

	endpoint := cfg.Token.Endpoint
	if endpoint == "" {
		endpoint = config.DefaultTokenEndpoint
	}

	return &Service{
		endpoint:  endpoint,
		apiKey:    cfg.APIKey(),
		authToken: cfg.AuthToken(),
		client:    c,
	}
}

type requestBody struct {
	Data requestData `json:"data"`
}

type requestData struct {
	UserID         string         `json:"userId"`
	UserProperties userProperties `json:"userProperties"`
}

type userProperties struct {
	OrganizationID string `json:"organizationId"`
	Email          string `json:"email,omitempty"`
	IsAdmin        *bool  `json:"isAdmin,omitempty"`
}

type apiResponse struct {
	Result struct {
		Data struct {
			Token string `json:"token"`
		} `json:"data"`
	} `json:"result"`
}

type apiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GetToken requests a token for the user with a single POST; token.retryMax enables retries.
// Validation and credential problems and API rejections are reported in the envelope; an empty
// organization and transport failures are returned as errors.
func (s *Service) GetToken(ctx context.Context, req model.TokenRequest) (model.Response[model.TokenData], error) {
	if req.OrganizationID == "" {
		metrics.TokenRequestsTotal.WithLabelValues(resultInvalidInput).Inc()
		return model.Response[model.TokenData]{},
			&services.ValidationError{Message: "organizationId must be a non-empty string"}
	}

	if req.UserID == "" {
		metrics.TokenRequestsTotal.WithLabelValues(resultInvalidInput).Inc()
		return model.Fail[model.TokenData](http.StatusBadRequest, model.ErrorCodeInvalidInput, "userId is required"), nil
	}

	if s.authToken == "" {
		metrics.TokenRequestsTotal.WithLabelValues(resultConfigError).Inc()
		return model.Fail[model.TokenData](http.StatusInternalServerError, model.ErrorCodeConfigError,
			"Velt auth token is required. Set it in config or VELT_AUTH_TOKEN environment variable"), nil
	}

	if s.apiKey == "" {
		metrics.TokenRequestsTotal.WithLabelValues(resultConfigError).Inc()
		return model.Fail[model.TokenData](http.StatusInternalServerError, model.ErrorCodeConfigError,
			"Velt API key is required. Set it in config or VELT_API_KEY environment variable"), nil
	}

	start := time.Now()
	defer func() {
		metrics.TokenRequestDuration.Observe(time.Since(start).Seconds())
	}()

	response, err := s.call(ctx, req)
	if err != nil {
		slog.Error("Token request failed", "organizationId", req.OrganizationID, "userId", req.UserID, "error", err)
		metrics.TokenRequestsTotal.WithLabelValues(resultNetworkError).Inc()

		return model.Response[model.TokenData]{}, err
	}

	switch {
	case response.ErrorCode == model.ErrorCodeVeltAPIError:
		metrics.TokenRequestsTotal.WithLabelValues(resultAPIError).Inc()
	case response.ErrorCode == model.ErrorCodeNoToken:
		metrics.TokenRequestsTotal.WithLabelValues(resultNoToken).Inc()
	default:
		metrics.TokenRequestsTotal.WithLabelValues(resultSuccess).Inc()
	}

	return response, nil
}

func (s *Service) call(ctx context.Context, req model.TokenRequest) (model.Response[model.TokenData], error) {
	jsonBody, err := json.Marshal(requestBody{
		Data: requestData{
			UserID: req.UserID,
			UserProperties: userProperties{
				OrganizationID: req.OrganizationID,
				Email:          req.Email,
				IsAdmin:        req.IsAdmin,
			},
		},
	})
	if err != nil {
		return model.Response[model.TokenData]{}, &Error{Message: "Unexpected error while getting token", Cause: err}
	}

	httpReq, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewBuffer(jsonBody))
	if err != nil {
		return model.Response[model.TokenData]{}, &Error{Message: "Unexpected error while getting token", Cause: err}
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set(headerAPIKey, s.apiKey)
	httpReq.Header.Set(headerAuthToken, s.authToken)

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return model.Response[model.TokenData]{}, &Error{Message: "Network error while getting token", Cause: err}
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return model.Response[model.TokenData]{}, &Error{Message: "Network error while getting token", Cause: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		slog.Debug("Token API rejected request", "statusCode", resp.StatusCode)

		return model.Fail[model.TokenData](resp.StatusCode, model.ErrorCodeVeltAPIError,
			"Velt API error: "+apiErrorMessage(bodyBytes)), nil
	}

	var parsed apiResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return model.Response[model.TokenData]{}, &Error{Message: "Unexpected error while getting token", Cause: err}
	}

	if parsed.Result.Data.Token == "" {
		return model.Fail[model.TokenData](http.StatusBadGateway, model.ErrorCodeNoToken,
			"No token received from Velt API"), nil
	}

	return model.OK(model.TokenData{Token: parsed.Result.Data.Token}), nil
}

func apiErrorMessage(body []byte) string {
	if len(body) == 0 {
		return defaultAPIErrorMessage
	}

	var parsed apiErrorResponse
	if err := json.Unmarshal(body, &parsed); err != nil || parsed.Error.Message == "" {
		return defaultAPIErrorMessage
	}

	return parsed.Error.Message
}
