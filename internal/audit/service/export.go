package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/railzwaylabs/agencyops/internal/audit/domain"
	"github.com/railzwaylabs/agencyops/internal/orgcontext"
)

type exportRecord struct {
	Timestamp  string         `json:"timestamp"`
	OrgID      string         `json:"org_id,omitempty"`
	ActorType  string         `json:"actor_type"`
	ActorID    string         `json:"actor_id,omitempty"`
	Action     string         `json:"action"`
	TargetType string         `json:"target_type"`
	TargetID   string         `json:"target_id,omitempty"`
	IPAddress  string         `json:"ip_address,omitempty"`
	UserAgent  string         `json:"user_agent,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

// Export returns the organization's audit trail as JSON with a checksum so a
// stored copy can be verified later.
func (s *Service) Export(ctx context.Context, req domain.ExportRequest) (*domain.ExportResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	if req.StartDate.IsZero() || !req.EndDate.After(req.StartDate) {
		return nil, domain.ErrInvalidRange
	}

	logs, err := s.repo.ListRange(ctx, s.db, orgID, req)
	if err != nil {
		return nil, err
	}

	records := make([]exportRecord, 0, len(logs))
	for _, log := range logs {
		records = append(records, exportRecord{
			Timestamp:  log.CreatedAt.UTC().Format(time.RFC3339),
			OrgID:      formatSnowflakeID(log.OrgID),
			ActorType:  log.ActorType,
			ActorID:    formatStringPtr(log.ActorID),
			Action:     log.Action,
			TargetType: log.TargetType,
			TargetID:   formatStringPtr(log.TargetID),
			IPAddress:  formatStringPtr(log.IPAddress),
			UserAgent:  formatStringPtr(log.UserAgent),
			Metadata:   log.Metadata,
		})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return nil, err
	}

	return &domain.ExportResult{
		Data:     data,
		Checksum: calculateChecksum(data),
		Count:    len(logs),
	}, nil
}

func formatSnowflakeID(id *snowflake.ID) string {
	if id == nil || *id == 0 {
		return ""
	}
	return id.String()
}

func formatStringPtr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func calculateChecksum(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
