package cli

import (
	"github.com/medicrypt/consentledger/internal/model"
)

// JSON views render entities with base58 strings instead of raw bytes.

// RecordView is the JSON shape of a record.
type RecordView struct {
	Addr          string `json:"addr"`
	Owner         string `json:"owner"`
	ContentID     string `json:"content_id"`
	EncryptedHash string `json:"encrypted_hash"`
	FileName      string `json:"file_name"`
	OwnerKeyCopy  string `json:"owner_key_copy,omitempty"`
	CreatedAt     int64  `json:"created_at"`
	IsActive      bool   `json:"is_active"`
}

func recordView(rec *model.RecordMetadata) RecordView {
	return RecordView{
		Addr:          rec.Addr.String(),
		Owner:         rec.Owner.String(),
		ContentID:     rec.ContentID,
		EncryptedHash: rec.EncryptedHash,
		FileName:      rec.FileName,
		OwnerKeyCopy:  rec.OwnerKeyCopy,
		CreatedAt:     rec.CreatedAt,
		IsActive:      rec.IsActive,
	}
}

// GrantView is the JSON shape of a grant.
type GrantView struct {
	Addr           string `json:"addr"`
	RecordAddr     string `json:"record_addr"`
	Requester      string `json:"requester"`
	Granter        string `json:"granter"`
	ReencryptedKey string `json:"reencrypted_key"`
	GrantedAt      int64  `json:"granted_at"`
	IsActive       bool   `json:"is_active"`
}

func grantView(g *model.AccessGrant) GrantView {
	return GrantView{
		Addr:           g.Addr.String(),
		RecordAddr:     g.RecordAddr.String(),
		Requester:      g.Requester.String(),
		Granter:        g.Granter.String(),
		ReencryptedKey: g.ReencryptedKey,
		GrantedAt:      g.GrantedAt,
		IsActive:       g.IsActive,
	}
}
