package collab

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"collab-go/internal/model"
)

// VersionSnapshot is an archived version together with its content data.
type VersionSnapshot struct {
	*model.ContentVersion
	Data string `json:"content_data"`
}

// blob is content data already stored in the archive, waiting for its
// version row.
type blob struct {
	checksum string
	size     int64
}

func checksumOf(data string) string {
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}

// archiveCurrent stores the current data of a content object in the archive.
// The caller holds the content lock, so the data is still current when the
// version row is written. A blob may be stored twice or left without a
// version row.
func (s *Service) archiveCurrent(ctx context.Context, contentID string) (blob, error) {
	content, err := s.database.FindContent(ctx, contentID)
	if err != nil {
		return blob{}, wrapErr("finding content", err)
	}
	if content == nil {
		return blob{}, fmt.Errorf("content %s: %w", contentID, ErrNotFound)
	}

	data := []byte(content.Data)
	b := blob{checksum: checksumOf(content.Data), size: int64(len(data))}
	if err := s.archive.Put(ctx, b.checksum, bytes.NewReader(data), b.size); err != nil {
		return blob{}, wrapErr("archiving snapshot", err)
	}
	return b, nil
}

// recordVersion writes the version row for an archived blob in tx. The
// content must still hold the archived data.
func (s *Service) recordVersion(tx ContentTx, content *model.Content, b blob, actorID, label string) (*model.ContentVersion, error) {
	if checksumOf(content.Data) != b.checksum {
		return nil, fmt.Errorf("content %s changed while archiving: %w", content.ID, ErrVersionConflict)
	}

	metadata := content.Metadata.Clone()
	if metadata == nil {
		metadata = model.Meta{}
	}
	metadata["content_type"] = content.ContentType

	version := &model.ContentVersion{
		ID:            s.idgen.New(),
		ContentID:     content.ID,
		VersionNumber: content.Version,
		Checksum:      b.checksum,
		Size:          b.size,
		Label:         label,
		CreatorID:     actorID,
		Metadata:      metadata,
		CreatedAt:     s.clock.Now(),
	}
	if err := tx.CreateVersion(version); err != nil {
		return nil, fmt.Errorf("storing version: %w", err)
	}
	return version, nil
}

// SaveVersion archives the current state of a content object under an
// optional label. The content version does not change.
func (s *Service) SaveVersion(ctx context.Context, ref model.Ref, actorID, label string) (*model.ContentVersion, error) {
	if _, _, err := s.requireEdit(ctx, ref, actorID); err != nil {
		return nil, err
	}

	unlock, err := s.lockContent(ctx, ref.ContentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := s.archiveCurrent(ctx, ref.ContentID)
	if err != nil {
		return nil, err
	}

	var saved *model.ContentVersion
	err = s.database.UpdateContent(ctx, ref.ContentID, func(tx ContentTx) error {
		v, err := s.recordVersion(tx, tx.Content(), b, actorID, strings.TrimSpace(label))
		saved = v
		return err
	})
	if err != nil {
		return nil, wrapErr("saving version", err)
	}

	s.logger.Info("version saved", "content", ref.ContentID, "version", saved.VersionNumber, "checksum", saved.Checksum)
	s.Announce(ctx, ref, actorID, EventVersionSaved, saved.VersionNumber, saved)
	return saved, nil
}

// ListVersions returns the archived versions of a content object, newest
// first.
func (s *Service) ListVersions(ctx context.Context, ref model.Ref, actorID string) ([]*model.ContentVersion, error) {
	if _, _, err := s.requireView(ctx, ref, actorID); err != nil {
		return nil, err
	}
	versions, err := s.database.FindVersionsForContent(ctx, ref.ContentID)
	if err != nil {
		return nil, wrapErr("listing versions", err)
	}
	return versions, nil
}

// GetVersion returns an archived version with its data.
func (s *Service) GetVersion(ctx context.Context, ref model.Ref, actorID, versionID string) (*VersionSnapshot, error) {
	if _, _, err := s.requireView(ctx, ref, actorID); err != nil {
		return nil, err
	}
	version, err := s.findVersion(ctx, ref, versionID)
	if err != nil {
		return nil, err
	}
	data, err := s.readSnapshot(ctx, version)
	if err != nil {
		return nil, err
	}
	return &VersionSnapshot{ContentVersion: version, Data: data}, nil
}

// Restore replaces the content data with an archived version. The current
// state is archived first and the version moves forward by one; it never
// goes back to the restored version number.
func (s *Service) Restore(ctx context.Context, ref model.Ref, actorID, versionID string) (*model.Content, error) {
	if _, _, err := s.requireEdit(ctx, ref, actorID); err != nil {
		return nil, err
	}
	target, err := s.findVersion(ctx, ref, versionID)
	if err != nil {
		return nil, err
	}
	data, err := s.readSnapshot(ctx, target)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockContent(ctx, ref.ContentID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	b, err := s.archiveCurrent(ctx, ref.ContentID)
	if err != nil {
		return nil, err
	}

	var restored *model.Content
	err = s.database.UpdateContent(ctx, ref.ContentID, func(tx ContentTx) error {
		content := tx.Content()
		label := fmt.Sprintf("before restore of version %d", target.VersionNumber)
		if _, err := s.recordVersion(tx, content, b, actorID, label); err != nil {
			return err
		}

		content.Data = data
		content.Version++
		content.UpdatedAt = s.clock.Now()
		if err := tx.SaveContent(content); err != nil {
			return fmt.Errorf("saving content: %w", err)
		}
		restored = content
		return nil
	})
	if err != nil {
		return nil, wrapErr("restoring version", err)
	}

	s.logger.Info("content restored", "content", restored.ID, "from", target.VersionNumber, "version", restored.Version, "actor", actorID)
	s.Announce(ctx, ref, actorID, EventContentRestored, restored.Version, restored)
	return restored, nil
}

func (s *Service) findVersion(ctx context.Context, ref model.Ref, versionID string) (*model.ContentVersion, error) {
	version, err := s.database.FindVersion(ctx, versionID)
	if err != nil {
		return nil, wrapErr("finding version", err)
	}
	if version == nil || version.ContentID != ref.ContentID {
		return nil, fmt.Errorf("version %s: %w", versionID, ErrNotFound)
	}
	return version, nil
}

func (s *Service) readSnapshot(ctx context.Context, version *model.ContentVersion) (string, error) {
	var buf bytes.Buffer
	if err := s.archive.Get(ctx, version.Checksum, &buf); err != nil {
		return "", wrapErr("reading snapshot", err)
	}
	if checksumOf(buf.String()) != version.Checksum {
		return "", fmt.Errorf("snapshot %s: %w: checksum mismatch", version.ID, ErrStorage)
	}
	return buf.String(), nil
}
