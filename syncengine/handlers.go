package syncengine

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/booksync/config"
	"github.com/mmdatafocus/booksync/connector"
	"github.com/mmdatafocus/booksync/models"
	"github.com/mmdatafocus/booksync/utils"
)

type ConnectRequest struct {
	Provider  string `json:"provider"`
	StoreId   string `json:"storeId"`
	StoreName string `json:"storeName"`
	APIKey    string `json:"apiKey"`
}

type TriggerSyncRequest struct {
	EntityTypes []string `json:"entityTypes"`
}

type ConnectionResponse struct {
	Provider  string `json:"provider,omitempty"`
	Status    string `json:"status"`
	StoreId   string `json:"storeId,omitempty"`
	StoreName string `json:"storeName,omitempty"`
}

type StatusResponse struct {
	Connection        ConnectionResponse `json:"connection"`
	LastSyncAt        string             `json:"lastSyncAt,omitempty"`
	LastSuccessSyncAt string             `json:"lastSuccessSyncAt,omitempty"`
}

type SyncHistoryResponse struct {
	Items []SyncRunResponse `json:"items"`
}

type SyncRunResponse struct {
	ID           uint                           `json:"id"`
	Source       string                         `json:"source"`
	SyncType     string                         `json:"syncType"`
	EntityTypes  []string                       `json:"entityTypes,omitempty"`
	Status       string                         `json:"status"`
	TriggeredBy  string                         `json:"triggeredBy"`
	StartedAt    string                         `json:"startedAt,omitempty"`
	FinishedAt   string                         `json:"finishedAt,omitempty"`
	DurationMs   int64                          `json:"durationMs"`
	Counts       map[string]models.EntityCounts `json:"counts"`
	ErrorSummary string                         `json:"errorSummary,omitempty"`
	ParentRunId  *uint                          `json:"parentRunId,omitempty"`
}

type SyncRunDetailResponse struct {
	SyncRunResponse
	Errors []models.SyncErrorDetail `json:"errors"`
}

// resolveOrganizationID trusts the gateway in front of this service: the
// gateway authenticates the caller and stamps the organization header.
// Internal callers may use the query parameter instead.
func resolveOrganizationID(c *gin.Context) (string, error) {
	if v := strings.TrimSpace(c.GetHeader("x-organization-id")); v != "" {
		return v, nil
	}
	if v := strings.TrimSpace(c.Query("organization_id")); v != "" {
		return v, nil
	}
	if v, ok := utils.GetOrganizationIdFromContext(c.Request.Context()); ok && strings.TrimSpace(v) != "" {
		return v, nil
	}
	return "", errors.New("unauthorized")
}

func StatusHandler(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, err := resolveOrganizationID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), organizationId)

		conn, err := store.GetConnection(ctx, organizationId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn == nil {
			c.JSON(http.StatusOK, StatusResponse{
				Connection: ConnectionResponse{Status: models.IntegrationStatusDisconnected},
			})
			return
		}

		c.JSON(http.StatusOK, StatusResponse{
			Connection: ConnectionResponse{
				Provider:  conn.Provider,
				Status:    conn.Status,
				StoreId:   conn.StoreId,
				StoreName: conn.StoreName,
			},
			LastSyncAt:        formatTime(conn.LastSyncAt),
			LastSuccessSyncAt: formatTime(conn.LastSuccessSyncAt),
		})
	}
}

func ConnectHandler(store Store, factory ConnectorFactory) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, err := resolveOrganizationID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		var req ConnectRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
		if strings.TrimSpace(req.APIKey) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "apiKey is required"})
			return
		}
		provider := strings.TrimSpace(req.Provider)
		if provider == "" {
			provider = models.IntegrationProviderPitiX
		}

		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), organizationId)
		conn, err := store.GetConnection(ctx, organizationId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		storeName := strings.TrimSpace(req.StoreName)
		if storeName == "" {
			storeName = req.StoreId
		}
		if conn == nil {
			conn = &models.IntegrationConnection{
				OrganizationId: organizationId,
				Provider:       provider,
			}
		}
		conn.Provider = provider
		conn.Status = models.IntegrationStatusConnected
		conn.AuthType = "api_key"
		conn.AuthSecretRef = req.APIKey
		conn.StoreId = strings.TrimSpace(req.StoreId)
		conn.StoreName = storeName
		if err := store.SaveConnection(ctx, conn); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if envBoolDefault("SYNC_VERIFY_ON_CONNECT", true) {
			ac, _, _, err := factory.ConnectorFor(ctx, organizationId)
			if err == nil {
				ok := ac.TestConnection(ctx)
				_ = ac.Close()
				if !ok {
					conn.Status = models.IntegrationStatusError
					_ = store.SaveConnection(ctx, conn)
					c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "credential check failed"})
					return
				}
			}
		}

		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func DisconnectHandler(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, err := resolveOrganizationID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), organizationId)

		conn, err := store.GetConnection(ctx, organizationId)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if conn == nil {
			c.JSON(http.StatusOK, gin.H{"success": true})
			return
		}

		conn.Status = models.IntegrationStatusDisconnected
		conn.AuthSecretRef = ""
		if err := store.SaveConnection(ctx, conn); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// TriggerSyncHandler accepts a run, queues it on Pub/Sub and returns its id.
// With SYNC_EXECUTE_INLINE the run executes in-process instead, which is how
// local development works without a broker.
func TriggerSyncHandler(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, err := resolveOrganizationID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		// An empty body means a full sync of every entity type.
		var req TriggerSyncRequest
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}

		var types []connector.EntityType
		for _, name := range req.EntityTypes {
			et, ok := connector.ParseEntityType(strings.TrimSpace(name))
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{"error": "unknown entity type: " + name})
				return
			}
			types = append(types, et)
		}

		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), organizationId)
		run, err := e.CreateRun(ctx, organizationId, types, models.SyncTriggeredManual, nil)
		if err != nil {
			if errors.Is(err, models.ErrNoActiveIntegration) {
				c.JSON(http.StatusConflict, gin.H{"error": "no connected integration"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		if envBoolDefault("SYNC_EXECUTE_INLINE", false) {
			// Detached from the request context: the run outlives the
			// HTTP response.
			go func() {
				bg := utils.SetOrganizationIdInContext(context.Background(), organizationId)
				if err := e.ProcessQueuedRun(bg, organizationId, run.ID); err != nil {
					config.LogError(e.logger, moduleName, "TriggerSyncHandler", "inline run", run.ID, err)
				}
			}()
		} else if err := PublishSyncRun(ctx, run.ID, organizationId, run.ConnectionId); err != nil {
			config.LogError(e.logger, moduleName, "TriggerSyncHandler", "publish run", run.ID, err)
		}

		c.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

func SyncHistoryHandler(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, err := resolveOrganizationID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		limit := 20
		if v := strings.TrimSpace(c.Query("limit")); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 100 {
				limit = n
			}
		}

		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), organizationId)
		runs, err := store.ListSyncRuns(ctx, organizationId, limit)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		items := make([]SyncRunResponse, 0, len(runs))
		for _, run := range runs {
			items = append(items, mapRunToResponse(run))
		}
		c.JSON(http.StatusOK, SyncHistoryResponse{Items: items})
	}
}

func SyncRunDetailHandler(store Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, err := resolveOrganizationID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), organizationId)
		run, err := store.GetSyncRun(ctx, organizationId, uint(id))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		if run == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}

		c.JSON(http.StatusOK, SyncRunDetailResponse{
			SyncRunResponse: mapRunToResponse(*run),
			Errors:          models.DecodeErrorDetails(run.ErrorDetailsJSON),
		})
	}
}

func RetrySyncRunHandler(e *Engine) gin.HandlerFunc {
	return func(c *gin.Context) {
		organizationId, err := resolveOrganizationID(c)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run id"})
			return
		}

		ctx := utils.SetOrganizationIdInContext(c.Request.Context(), organizationId)
		run, err := e.RetryRun(ctx, organizationId, uint(id))
		if err != nil {
			if errors.Is(err, models.ErrNoActiveIntegration) {
				c.JSON(http.StatusConflict, gin.H{"error": "no connected integration"})
				return
			}
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		if envBoolDefault("SYNC_EXECUTE_INLINE", false) {
			go func() {
				bg := utils.SetOrganizationIdInContext(context.Background(), organizationId)
				if err := e.ProcessQueuedRun(bg, organizationId, run.ID); err != nil {
					config.LogError(e.logger, moduleName, "RetrySyncRunHandler", "inline run", run.ID, err)
				}
			}()
		} else if err := PublishSyncRun(ctx, run.ID, organizationId, run.ConnectionId); err != nil {
			config.LogError(e.logger, moduleName, "RetrySyncRunHandler", "publish run", run.ID, err)
		}

		c.JSON(http.StatusOK, gin.H{"id": run.ID})
	}
}

func mapRunToResponse(run models.SyncRun) SyncRunResponse {
	return SyncRunResponse{
		ID:           run.ID,
		Source:       run.Source,
		SyncType:     run.SyncType,
		EntityTypes:  models.DecodeEntityTypes(run.EntityTypesJSON),
		Status:       run.Status,
		TriggeredBy:  run.TriggeredBy,
		StartedAt:    formatTime(run.StartedAt),
		FinishedAt:   formatTime(run.FinishedAt),
		DurationMs:   run.DurationMs,
		Counts:       models.DecodeCounts(run.CountsJSON),
		ErrorSummary: run.ErrorSummary,
		ParentRunId:  run.ParentRunId,
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
