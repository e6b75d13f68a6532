// Copyright 2025 Medsearch Project
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

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestManager_Check(t *testing.T) {
	logger := zap.NewNop()
	manager := NewManager("medsearch-api", "1.0.0", logger)

	manager.AddCheckerFunc("catalog", func(ctx context.Context) CheckResult {
		return CheckResult{
			Status:    StatusHealthy,
			Timestamp: time.Now(),
		}
	})

	manager.AddCheckerFunc("broken", func(ctx context.Context) CheckResult {
		return CheckResult{
			Status:    StatusUnhealthy,
			Error:     "database is down",
			Timestamp: time.Now(),
		}
	})

	result := manager.Check(context.Background())

	if result.Status != StatusUnhealthy {
		t.Errorf("Expected status to be unhealthy, got %s", result.Status)
	}

	if result.Service != "medsearch-api" {
		t.Errorf("Expected service to be medsearch-api, got %s", result.Service)
	}

	if len(result.Dependencies) != 2 {
		t.Errorf("Expected 2 dependencies, got %d", len(result.Dependencies))
	}

	if result.Dependencies["broken"].Error != "database is down" {
		t.Errorf("Expected error message, got %s", result.Dependencies["broken"].Error)
	}
}

func TestManager_Check_DegradedDoesNotEscalate(t *testing.T) {
	logger := zap.NewNop()
	manager := NewManager("medsearch-api", "1.0.0", logger)

	manager.AddCheckerFunc("catalog", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy, Timestamp: time.Now()}
	})

	manager.AddCheckerFunc("ai_provider", func(ctx context.Context) CheckResult {
		return CheckResult{
			Status:    StatusDegraded,
			Error:     "no credential configured",
			Timestamp: time.Now(),
		}
	})

	result := manager.Check(context.Background())

	if result.Status != StatusDegraded {
		t.Errorf("Expected overall status degraded, got %s", result.Status)
	}
}

func TestManager_HTTPHandler(t *testing.T) {
	logger := zap.NewNop()
	manager := NewManager("medsearch-api", "1.0.0", logger)

	manager.AddCheckerFunc("catalog", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusHealthy, Timestamp: time.Now()}
	})

	handler := manager.HTTPHandler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	var response Response
	if err := json.Unmarshal(rec.Body.Bytes(), &response); err != nil {
		t.Fatalf("Failed to decode health response: %v", err)
	}
	if response.Status != StatusHealthy {
		t.Errorf("Expected healthy response, got %s", response.Status)
	}
}

func TestManager_HTTPHandler_DegradedStaysInRotation(t *testing.T) {
	logger := zap.NewNop()
	manager := NewManager("medsearch-api", "1.0.0", logger)

	manager.AddCheckerFunc("ai_provider", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusDegraded, Timestamp: time.Now()}
	})

	rec := httptest.NewRecorder()
	manager.HTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("Degraded service must answer 200, got %d", rec.Code)
	}
}

func TestManager_HTTPHandler_Unhealthy(t *testing.T) {
	logger := zap.NewNop()
	manager := NewManager("medsearch-api", "1.0.0", logger)

	manager.AddCheckerFunc("catalog", func(ctx context.Context) CheckResult {
		return CheckResult{Status: StatusUnhealthy, Error: "ping failed", Timestamp: time.Now()}
	})

	rec := httptest.NewRecorder()
	manager.HTTPHandler()(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", rec.Code)
	}
}

func TestManager_HTTPHandler_MethodNotAllowed(t *testing.T) {
	logger := zap.NewNop()
	manager := NewManager("medsearch-api", "1.0.0", logger)

	rec := httptest.NewRecorder()
	manager.HTTPHandler()(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("Expected status 405, got %d", rec.Code)
	}
}

func TestDatabaseChecker(t *testing.T) {
	healthy := DatabaseChecker("medicines", func(ctx context.Context) error {
		return nil
	})
	result := healthy.Check(context.Background())
	if result.Status != StatusHealthy {
		t.Errorf("Expected healthy, got %s", result.Status)
	}
	if result.Metadata["database"] != "medicines" {
		t.Errorf("Expected database name in metadata, got %v", result.Metadata)
	}

	broken := DatabaseChecker("medicines", func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	result = broken.Check(context.Background())
	if result.Status != StatusUnhealthy {
		t.Errorf("Expected unhealthy, got %s", result.Status)
	}
}

func TestProviderChecker_AbsenceIsDegraded(t *testing.T) {
	available := ProviderChecker(func() error { return nil })
	if result := available.Check(context.Background()); result.Status != StatusHealthy {
		t.Errorf("Expected healthy, got %s", result.Status)
	}

	missing := ProviderChecker(func() error {
		return errors.New("no credential configured for AI provider")
	})
	result := missing.Check(context.Background())
	if result.Status != StatusDegraded {
		t.Errorf("Missing credentials must degrade, not fail: got %s", result.Status)
	}
}
