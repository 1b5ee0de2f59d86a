package database

const (
	deletePendingItemsQuery = `DELETE FROM pending_items`

	insertPendingItemQuery = `
		INSERT INTO pending_items (id, kind, payload, source_message_id, created_at, position)
		VALUES (?, ?, ?, ?, ?, ?)`

	selectPendingItemsQuery = `
		SELECT payload FROM pending_items ORDER BY position ASC`

	deleteDedupLedgerQuery = `DELETE FROM dedup_ledger`

	insertFingerprintQuery = `
		INSERT INTO dedup_ledger (fingerprint, position) VALUES (?, ?)`

	selectFingerprintsQuery = `
		SELECT fingerprint FROM dedup_ledger ORDER BY position ASC`

	upsertDisplayMetaQuery = `
		INSERT INTO display_meta (id, kind, name, avatar_url, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id, kind) DO UPDATE SET
			name = excluded.name,
			avatar_url = excluded.avatar_url,
			cached_at = excluded.cached_at`

	selectDisplayMetaQuery = `
		SELECT id, kind, name, avatar_url, cached_at
		FROM display_meta WHERE id = ? AND kind = ?`

	selectAllDisplayMetaQuery = `
		SELECT id, kind, name, avatar_url, cached_at FROM display_meta`
)
