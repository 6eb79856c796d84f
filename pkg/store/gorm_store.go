package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"molten/pkg/domain"
)

const migrateLockID int64 = 46104610

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations under an advisory lock
// so concurrent instances do not race on schema changes.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&GlassItemModel{},
			&InventoryEntryModel{},
			&ShoppingEntryModel{},
			&PurchaseModel{},
			&PurchaseItemModel{},
			&ProjectModel{},
			&ProjectChildModel{},
			&GlassUsageModel{},
			&ImageRefModel{},
			&NoteModel{},
			&MigrationFlagModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

func translateErr(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateKey
	}
	return err
}

// ---- glass items ----

// CreateItem inserts a catalog entry; an existing natural key fails with
// ErrDuplicateKey and leaves the prior record untouched.
func (s *GormStore) CreateItem(ctx context.Context, item domain.GlassItem) error {
	model := itemToModel(item)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translateErr(err)
	}
	return nil
}

// GetItem looks up an item by natural key.
func (s *GormStore) GetItem(ctx context.Context, key string) (domain.GlassItem, bool, error) {
	var model GlassItemModel
	if err := s.db.WithContext(ctx).First(&model, "natural_key = ?", key).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.GlassItem{}, false, nil
		}
		return domain.GlassItem{}, false, err
	}
	return itemFromModel(model), true, nil
}

// GetItemByStableID resolves the short deep-link identifier by direct lookup.
func (s *GormStore) GetItemByStableID(ctx context.Context, stableID string) (domain.GlassItem, bool, error) {
	var model GlassItemModel
	if err := s.db.WithContext(ctx).First(&model, "stable_id = ?", stableID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.GlassItem{}, false, nil
		}
		return domain.GlassItem{}, false, err
	}
	return itemFromModel(model), true, nil
}

// ListItems returns the catalog ordered by manufacturer then name.
func (s *GormStore) ListItems(ctx context.Context) ([]domain.GlassItem, error) {
	var models []GlassItemModel
	if err := s.db.WithContext(ctx).Order("manufacturer ASC, name ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	items := make([]domain.GlassItem, 0, len(models))
	for _, m := range models {
		items = append(items, itemFromModel(m))
	}
	return items, nil
}

// UpdateItem replaces an existing item; an absent key fails with ErrNotFound.
func (s *GormStore) UpdateItem(ctx context.Context, item domain.GlassItem) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing GlassItemModel
		if err := tx.First(&existing, "natural_key = ?", item.NaturalKey).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		model := itemToModel(item)
		return tx.Save(&model).Error
	})
}

// UpsertItems merges a batch by natural key.
func (s *GormStore) UpsertItems(ctx context.Context, items []domain.GlassItem) error {
	if len(items) == 0 {
		return nil
	}
	models := make([]GlassItemModel, 0, len(items))
	for _, item := range items {
		models = append(models, itemToModel(item))
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "natural_key"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "manufacturer", "sku", "coe", "status", "description",
			"tags", "synonyms", "stock_types", "manufacturer_url",
			"image_url", "image_path", "last_seen", "discontinued_date",
		}),
	}).CreateInBatches(&models, 200).Error
}

// ---- inventory ----

func (s *GormStore) CreateEntry(ctx context.Context, entry domain.InventoryEntry) error {
	model := inventoryToModel(entry)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translateErr(err)
	}
	return nil
}

func (s *GormStore) GetEntry(ctx context.Context, id string) (domain.InventoryEntry, bool, error) {
	var model InventoryEntryModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.InventoryEntry{}, false, nil
		}
		return domain.InventoryEntry{}, false, err
	}
	return inventoryFromModel(model), true, nil
}

func (s *GormStore) ListEntries(ctx context.Context) ([]domain.InventoryEntry, error) {
	return s.listEntries(ctx)
}

func (s *GormStore) ListEntriesByItem(ctx context.Context, itemKey string) ([]domain.InventoryEntry, error) {
	return s.listEntries(ctx, "item_key = ?", itemKey)
}

func (s *GormStore) listEntries(ctx context.Context, conds ...any) ([]domain.InventoryEntry, error) {
	var models []InventoryEntryModel
	tx := s.db.WithContext(ctx).Order("created_at ASC")
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]domain.InventoryEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, inventoryFromModel(m))
	}
	return entries, nil
}

func (s *GormStore) UpdateEntry(ctx context.Context, entry domain.InventoryEntry) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing InventoryEntryModel
		if err := tx.First(&existing, "id = ?", entry.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		model := inventoryToModel(entry)
		model.CreatedAt = existing.CreatedAt
		return tx.Save(&model).Error
	})
}

func (s *GormStore) DeleteEntry(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Delete(&InventoryEntryModel{}, "id = ?", id).Error
}

// ---- shopping list ----

// SetShoppingEntry upserts on the (item key, store) pair.
func (s *GormStore) SetShoppingEntry(ctx context.Context, entry domain.ShoppingListEntry) error {
	model := shoppingToModel(entry)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "item_key"}, {Name: "store"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"type", "subtype", "quantity", "updated_at",
		}),
	}).Create(&model).Error
}

func (s *GormStore) GetShoppingEntry(ctx context.Context, itemKey, storeName string) (domain.ShoppingListEntry, bool, error) {
	var model ShoppingEntryModel
	err := s.db.WithContext(ctx).
		First(&model, "item_key = ? AND store = ?", itemKey, storeName).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.ShoppingListEntry{}, false, nil
		}
		return domain.ShoppingListEntry{}, false, err
	}
	return shoppingFromModel(model), true, nil
}

func (s *GormStore) ListShoppingEntries(ctx context.Context) ([]domain.ShoppingListEntry, error) {
	return s.listShopping(ctx)
}

func (s *GormStore) ListShoppingEntriesByStore(ctx context.Context, storeName string) ([]domain.ShoppingListEntry, error) {
	return s.listShopping(ctx, "store = ?", storeName)
}

func (s *GormStore) listShopping(ctx context.Context, conds ...any) ([]domain.ShoppingListEntry, error) {
	var models []ShoppingEntryModel
	tx := s.db.WithContext(ctx).Order("created_at ASC")
	if len(conds) > 0 {
		tx = tx.Where(conds[0], conds[1:]...)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	entries := make([]domain.ShoppingListEntry, 0, len(models))
	for _, m := range models {
		entries = append(entries, shoppingFromModel(m))
	}
	return entries, nil
}

func (s *GormStore) DeleteShoppingEntry(ctx context.Context, itemKey, storeName string) error {
	return s.db.WithContext(ctx).
		Delete(&ShoppingEntryModel{}, "item_key = ? AND store = ?", itemKey, storeName).Error
}

// ---- purchases ----

// CreatePurchase stores the header and its lines in one transaction.
func (s *GormStore) CreatePurchase(ctx context.Context, record domain.PurchaseRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := purchaseToModel(record)
		if err := tx.Create(&model).Error; err != nil {
			return translateErr(err)
		}
		return createPurchaseLines(tx, record)
	})
}

func createPurchaseLines(tx *gorm.DB, record domain.PurchaseRecord) error {
	if len(record.Items) == 0 {
		return nil
	}
	lines := make([]PurchaseItemModel, 0, len(record.Items))
	for i, item := range record.Items {
		lines = append(lines, PurchaseItemModel{
			PurchaseID: record.ID,
			Position:   i,
			ItemKey:    item.ItemKey,
			Type:       string(item.Type),
			Quantity:   item.Quantity,
			Price:      item.Price,
		})
	}
	return tx.Create(&lines).Error
}

func (s *GormStore) GetPurchase(ctx context.Context, id string) (domain.PurchaseRecord, bool, error) {
	var model PurchaseModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.PurchaseRecord{}, false, nil
		}
		return domain.PurchaseRecord{}, false, err
	}
	var lines []PurchaseItemModel
	if err := s.db.WithContext(ctx).
		Where("purchase_id = ?", id).Order("position ASC").Find(&lines).Error; err != nil {
		return domain.PurchaseRecord{}, false, err
	}
	return purchaseFromModel(model, lines), true, nil
}

func (s *GormStore) ListPurchases(ctx context.Context) ([]domain.PurchaseRecord, error) {
	var models []PurchaseModel
	if err := s.db.WithContext(ctx).Order("purchase_date DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	records := make([]domain.PurchaseRecord, 0, len(models))
	for _, m := range models {
		var lines []PurchaseItemModel
		if err := s.db.WithContext(ctx).
			Where("purchase_id = ?", m.ID).Order("position ASC").Find(&lines).Error; err != nil {
			return nil, err
		}
		records = append(records, purchaseFromModel(m, lines))
	}
	return records, nil
}

// UpdatePurchase replaces the header and its lines.
func (s *GormStore) UpdatePurchase(ctx context.Context, record domain.PurchaseRecord) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing PurchaseModel
		if err := tx.First(&existing, "id = ?", record.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		model := purchaseToModel(record)
		model.CreatedAt = existing.CreatedAt
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		if err := tx.Delete(&PurchaseItemModel{}, "purchase_id = ?", record.ID).Error; err != nil {
			return err
		}
		return createPurchaseLines(tx, record)
	})
}

// DeletePurchase removes the header and cascades to its lines.
func (s *GormStore) DeletePurchase(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&PurchaseItemModel{}, "purchase_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&PurchaseModel{}, "id = ?", id).Error
	})
}

// ---- projects ----

func (s *GormStore) CreateProject(ctx context.Context, project domain.Project) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		model := projectToModel(project)
		if err := tx.Create(&model).Error; err != nil {
			return translateErr(err)
		}
		return createProjectChildren(tx, project)
	})
}

func createProjectChildren(tx *gorm.DB, project domain.Project) error {
	var children []ProjectChildModel
	appendKind := func(kind ChildKind, values []domain.ProjectChild) {
		for _, child := range values {
			children = append(children, childToModel(project.ID, kind, child))
		}
	}
	appendKind(ChildTag, project.Tags)
	appendKind(ChildTechnique, project.Techniques)
	appendKind(ChildReference, project.References)
	for _, step := range project.Steps {
		children = append(children, ProjectChildModel{
			ID:         step.ID,
			ProjectID:  project.ID,
			Kind:       string(ChildStep),
			Value:      step.Text,
			OrderIndex: step.OrderIndex,
			CreatedAt:  step.CreatedAt,
		})
	}
	if len(children) > 0 {
		if err := tx.Create(&children).Error; err != nil {
			return err
		}
	}
	if len(project.GlassUsage) > 0 {
		usage := make([]GlassUsageModel, 0, len(project.GlassUsage))
		for _, u := range project.GlassUsage {
			usage = append(usage, usageToModel(project.ID, u))
		}
		if err := tx.Create(&usage).Error; err != nil {
			return err
		}
	}
	if len(project.Images) > 0 {
		images := make([]ImageRefModel, 0, len(project.Images))
		for _, ref := range project.Images {
			images = append(images, imageToModel(project.ID, ref))
		}
		if err := tx.Create(&images).Error; err != nil {
			return err
		}
	}
	return nil
}

func (s *GormStore) GetProject(ctx context.Context, id string) (domain.Project, bool, error) {
	var model ProjectModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Project{}, false, nil
		}
		return domain.Project{}, false, err
	}
	project, err := s.assembleProject(ctx, model)
	if err != nil {
		return domain.Project{}, false, err
	}
	return project, true, nil
}

func (s *GormStore) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var models []ProjectModel
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	projects := make([]domain.Project, 0, len(models))
	for _, m := range models {
		project, err := s.assembleProject(ctx, m)
		if err != nil {
			return nil, err
		}
		projects = append(projects, project)
	}
	return projects, nil
}

func (s *GormStore) assembleProject(ctx context.Context, model ProjectModel) (domain.Project, error) {
	project := projectFromModel(model)
	var children []ProjectChildModel
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", model.ID).Order("order_index ASC").Find(&children).Error; err != nil {
		return domain.Project{}, err
	}
	for _, child := range children {
		switch ChildKind(child.Kind) {
		case ChildTag:
			project.Tags = append(project.Tags, childFromModel(child))
		case ChildTechnique:
			project.Techniques = append(project.Techniques, childFromModel(child))
		case ChildReference:
			project.References = append(project.References, childFromModel(child))
		case ChildStep:
			project.Steps = append(project.Steps, domain.ProjectStep{
				ID:         child.ID,
				Text:       child.Value,
				OrderIndex: child.OrderIndex,
				CreatedAt:  child.CreatedAt,
			})
		}
	}
	var usage []GlassUsageModel
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", model.ID).Order("order_index ASC").Find(&usage).Error; err != nil {
		return domain.Project{}, err
	}
	for _, u := range usage {
		project.GlassUsage = append(project.GlassUsage, usageFromModel(u))
	}
	var images []ImageRefModel
	if err := s.db.WithContext(ctx).
		Where("project_id = ?", model.ID).Order("order_index ASC").Find(&images).Error; err != nil {
		return domain.Project{}, err
	}
	for _, ref := range images {
		project.Images = append(project.Images, imageFromModel(ref))
	}
	return project, nil
}

// UpdateProject replaces the project header and owned collections wholesale.
// Image refs are managed separately via AddImageRef/DeleteImageRef.
func (s *GormStore) UpdateProject(ctx context.Context, project domain.Project) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing ProjectModel
		if err := tx.First(&existing, "id = ?", project.ID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		model := projectToModel(project)
		model.CreatedAt = existing.CreatedAt
		model.LegacyTags = existing.LegacyTags
		model.LegacyTechniques = existing.LegacyTechniques
		model.LegacyReferenceURLs = existing.LegacyReferenceURLs
		model.LegacyGlassUsage = existing.LegacyGlassUsage
		if err := tx.Save(&model).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ProjectChildModel{}, "project_id = ?", project.ID).Error; err != nil {
			return err
		}
		if err := tx.Delete(&GlassUsageModel{}, "project_id = ?", project.ID).Error; err != nil {
			return err
		}
		stripped := project
		stripped.Images = nil
		return createProjectChildren(tx, stripped)
	})
}

// DeleteProject cascades to children, usage records and image metadata.
func (s *GormStore) DeleteProject(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&ProjectChildModel{}, "project_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&GlassUsageModel{}, "project_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&ImageRefModel{}, "project_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&ProjectModel{}, "id = ?", id).Error
	})
}

func (s *GormStore) AddImageRef(ctx context.Context, projectID string, ref domain.ImageRef) error {
	model := imageToModel(projectID, ref)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translateErr(err)
	}
	return nil
}

func (s *GormStore) DeleteImageRef(ctx context.Context, projectID, refID string) error {
	return s.db.WithContext(ctx).
		Delete(&ImageRefModel{}, "project_id = ? AND id = ?", projectID, refID).Error
}

func (s *GormStore) ListLegacyProjectBlobs(ctx context.Context) ([]LegacyProjectBlobs, error) {
	var models []ProjectModel
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	blobs := make([]LegacyProjectBlobs, 0, len(models))
	for _, m := range models {
		blobs = append(blobs, LegacyProjectBlobs{
			ProjectID:     m.ID,
			Tags:          m.LegacyTags,
			Techniques:    m.LegacyTechniques,
			ReferenceURLs: m.LegacyReferenceURLs,
			GlassUsage:    m.LegacyGlassUsage,
		})
	}
	return blobs, nil
}

func (s *GormStore) AddProjectChildren(ctx context.Context, projectID string, kind ChildKind, children []domain.ProjectChild) error {
	if len(children) == 0 {
		return nil
	}
	models := make([]ProjectChildModel, 0, len(children))
	for _, child := range children {
		models = append(models, childToModel(projectID, kind, child))
	}
	return s.db.WithContext(ctx).Create(&models).Error
}

func (s *GormStore) AddGlassUsage(ctx context.Context, projectID string, usage []domain.GlassUsage) error {
	if len(usage) == 0 {
		return nil
	}
	models := make([]GlassUsageModel, 0, len(usage))
	for _, u := range usage {
		models = append(models, usageToModel(projectID, u))
	}
	return s.db.WithContext(ctx).Create(&models).Error
}

func (s *GormStore) ClearLegacyBlob(ctx context.Context, projectID string, kind ChildKind) error {
	column := ""
	switch kind {
	case ChildTag:
		column = "legacy_tags"
	case ChildTechnique:
		column = "legacy_techniques"
	case ChildReference:
		column = "legacy_reference_urls"
	default:
		return fmt.Errorf("no legacy blob column for kind %q", kind)
	}
	return s.db.WithContext(ctx).Model(&ProjectModel{}).
		Where("id = ?", projectID).Update(column, "").Error
}

func (s *GormStore) ClearLegacyGlassUsage(ctx context.Context, projectID string) error {
	return s.db.WithContext(ctx).Model(&ProjectModel{}).
		Where("id = ?", projectID).Update("legacy_glass_usage", "").Error
}

// ---- notes ----

// CreateNote inserts a note; a second note for the same item key fails with
// ErrDuplicateKey.
func (s *GormStore) CreateNote(ctx context.Context, note domain.UserNote) error {
	model := noteToModel(note)
	if err := s.db.WithContext(ctx).Create(&model).Error; err != nil {
		return translateErr(err)
	}
	return nil
}

func (s *GormStore) GetNote(ctx context.Context, itemKey string) (domain.UserNote, bool, error) {
	var model NoteModel
	if err := s.db.WithContext(ctx).First(&model, "item_key = ?", itemKey).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.UserNote{}, false, nil
		}
		return domain.UserNote{}, false, err
	}
	return noteFromModel(model), true, nil
}

func (s *GormStore) GetNotesForItems(ctx context.Context, itemKeys []string) (map[string]domain.UserNote, error) {
	result := make(map[string]domain.UserNote, len(itemKeys))
	if len(itemKeys) == 0 {
		return result, nil
	}
	var models []NoteModel
	if err := s.db.WithContext(ctx).Where("item_key IN ?", itemKeys).Find(&models).Error; err != nil {
		return nil, err
	}
	for _, m := range models {
		result[m.ItemKey] = noteFromModel(m)
	}
	return result, nil
}

func (s *GormStore) ListNotes(ctx context.Context) ([]domain.UserNote, error) {
	var models []NoteModel
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	notes := make([]domain.UserNote, 0, len(models))
	for _, m := range models {
		notes = append(notes, noteFromModel(m))
	}
	return notes, nil
}

// SetNote upserts the note for an item key.
func (s *GormStore) SetNote(ctx context.Context, note domain.UserNote) error {
	model := noteToModel(note)
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "item_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"text", "updated_at"}),
	}).Create(&model).Error
}

func (s *GormStore) UpdateNote(ctx context.Context, note domain.UserNote) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing NoteModel
		if err := tx.First(&existing, "item_key = ?", note.ItemKey).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}
		model := noteToModel(note)
		model.CreatedAt = existing.CreatedAt
		return tx.Save(&model).Error
	})
}

func (s *GormStore) DeleteNote(ctx context.Context, itemKey string) error {
	return s.db.WithContext(ctx).Delete(&NoteModel{}, "item_key = ?", itemKey).Error
}

func (s *GormStore) DeleteAllNotes(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("1 = 1").Delete(&NoteModel{}).Error
}

// SearchNotes matches note text or item key, case-insensitively.
func (s *GormStore) SearchNotes(ctx context.Context, text string) ([]domain.UserNote, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return s.ListNotes(ctx)
	}
	pattern := "%" + strings.ToLower(text) + "%"
	var models []NoteModel
	if err := s.db.WithContext(ctx).
		Where("LOWER(text) LIKE ? OR LOWER(item_key) LIKE ?", pattern, pattern).
		Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	notes := make([]domain.UserNote, 0, len(models))
	for _, m := range models {
		notes = append(notes, noteFromModel(m))
	}
	return notes, nil
}

// ---- migration flags ----

func (s *GormStore) MigrationFlag(ctx context.Context, name string) (bool, error) {
	var model MigrationFlagModel
	if err := s.db.WithContext(ctx).First(&model, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *GormStore) SetMigrationFlag(ctx context.Context, name string, at time.Time) error {
	model := MigrationFlagModel{Name: name, SetAt: at}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"set_at"}),
	}).Create(&model).Error
}

// ---- conversions ----

func itemToModel(g domain.GlassItem) GlassItemModel {
	tags, _ := json.Marshal(g.Tags)
	synonyms, _ := json.Marshal(g.Synonyms)
	stockTypes, _ := json.Marshal(g.StockTypes)
	return GlassItemModel{
		NaturalKey:       g.NaturalKey,
		StableID:         g.StableID,
		Name:             g.Name,
		Manufacturer:     g.Manufacturer,
		SKU:              g.SKU,
		COE:              g.COE,
		Status:           string(g.Status),
		Description:      g.Description,
		Tags:             tags,
		Synonyms:         synonyms,
		StockTypes:       stockTypes,
		ManufacturerURL:  g.ManufacturerURL,
		ImageURL:         g.ImageURL,
		ImagePath:        g.ImagePath,
		AddedDate:        g.AddedDate,
		LastSeen:         g.LastSeen,
		DiscontinuedDate: g.DiscontinuedDate,
	}
}

func itemFromModel(m GlassItemModel) domain.GlassItem {
	var tags, synonyms, stockTypes []string
	if len(m.Tags) > 0 {
		_ = json.Unmarshal(m.Tags, &tags)
	}
	if len(m.Synonyms) > 0 {
		_ = json.Unmarshal(m.Synonyms, &synonyms)
	}
	if len(m.StockTypes) > 0 {
		_ = json.Unmarshal(m.StockTypes, &stockTypes)
	}
	status := domain.ItemStatus(m.Status)
	if status == "" {
		status = domain.StatusAvailable
	}
	return domain.GlassItem{
		NaturalKey:       m.NaturalKey,
		StableID:         m.StableID,
		Name:             m.Name,
		Manufacturer:     m.Manufacturer,
		SKU:              m.SKU,
		COE:              m.COE,
		Status:           status,
		Description:      m.Description,
		Tags:             tags,
		Synonyms:         synonyms,
		StockTypes:       stockTypes,
		ManufacturerURL:  m.ManufacturerURL,
		ImageURL:         m.ImageURL,
		ImagePath:        m.ImagePath,
		AddedDate:        m.AddedDate,
		LastSeen:         m.LastSeen,
		DiscontinuedDate: m.DiscontinuedDate,
	}
}

func inventoryToModel(e domain.InventoryEntry) InventoryEntryModel {
	return InventoryEntryModel{
		ID:         e.ID,
		ItemKey:    e.ItemKey,
		Type:       string(e.Type),
		Quantity:   e.Quantity,
		Location:   e.Location,
		Dimensions: e.Dimensions,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}
}

func inventoryFromModel(m InventoryEntryModel) domain.InventoryEntry {
	return domain.InventoryEntry{
		ID:         m.ID,
		ItemKey:    m.ItemKey,
		Type:       domain.StockType(m.Type),
		Quantity:   m.Quantity,
		Location:   m.Location,
		Dimensions: m.Dimensions,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func shoppingToModel(e domain.ShoppingListEntry) ShoppingEntryModel {
	return ShoppingEntryModel{
		ItemKey:   e.ItemKey,
		Store:     e.Store,
		Type:      string(e.Type),
		Subtype:   e.Subtype,
		Quantity:  e.Quantity,
		CreatedAt: e.CreatedAt,
		UpdatedAt: e.UpdatedAt,
	}
}

func shoppingFromModel(m ShoppingEntryModel) domain.ShoppingListEntry {
	return domain.ShoppingListEntry{
		ItemKey:   m.ItemKey,
		Store:     m.Store,
		Type:      domain.StockType(m.Type),
		Subtype:   m.Subtype,
		Quantity:  m.Quantity,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func purchaseToModel(r domain.PurchaseRecord) PurchaseModel {
	return PurchaseModel{
		ID:           r.ID,
		Supplier:     r.Supplier,
		PurchaseDate: r.PurchaseDate,
		Shipping:     r.Shipping,
		Tax:          r.Tax,
		Total:        r.Total,
		Notes:        r.Notes,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func purchaseFromModel(m PurchaseModel, lines []PurchaseItemModel) domain.PurchaseRecord {
	items := make([]domain.PurchaseRecordItem, 0, len(lines))
	for _, line := range lines {
		items = append(items, domain.PurchaseRecordItem{
			ItemKey:  line.ItemKey,
			Type:     domain.StockType(line.Type),
			Quantity: line.Quantity,
			Price:    line.Price,
		})
	}
	return domain.PurchaseRecord{
		ID:           m.ID,
		Supplier:     m.Supplier,
		PurchaseDate: m.PurchaseDate,
		Shipping:     m.Shipping,
		Tax:          m.Tax,
		Total:        m.Total,
		Notes:        m.Notes,
		Items:        items,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func projectToModel(p domain.Project) ProjectModel {
	return ProjectModel{
		ID:        p.ID,
		Title:     p.Title,
		Summary:   p.Summary,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func projectFromModel(m ProjectModel) domain.Project {
	return domain.Project{
		ID:        m.ID,
		Title:     m.Title,
		Summary:   m.Summary,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

func childToModel(projectID string, kind ChildKind, c domain.ProjectChild) ProjectChildModel {
	return ProjectChildModel{
		ID:         c.ID,
		ProjectID:  projectID,
		Kind:       string(kind),
		Value:      c.Value,
		OrderIndex: c.OrderIndex,
		CreatedAt:  c.CreatedAt,
	}
}

func childFromModel(m ProjectChildModel) domain.ProjectChild {
	return domain.ProjectChild{
		ID:         m.ID,
		Value:      m.Value,
		OrderIndex: m.OrderIndex,
		CreatedAt:  m.CreatedAt,
	}
}

func usageToModel(projectID string, u domain.GlassUsage) GlassUsageModel {
	return GlassUsageModel{
		ID:         u.ID,
		ProjectID:  projectID,
		ItemKey:    u.ItemKey,
		Type:       string(u.Type),
		Quantity:   u.Quantity,
		OrderIndex: u.OrderIndex,
		CreatedAt:  u.CreatedAt,
	}
}

func usageFromModel(m GlassUsageModel) domain.GlassUsage {
	return domain.GlassUsage{
		ID:         m.ID,
		ItemKey:    m.ItemKey,
		Type:       domain.StockType(m.Type),
		Quantity:   m.Quantity,
		OrderIndex: m.OrderIndex,
		CreatedAt:  m.CreatedAt,
	}
}

func imageToModel(projectID string, ref domain.ImageRef) ImageRefModel {
	return ImageRefModel{
		ID:         ref.ID,
		ProjectID:  projectID,
		StorageKey: ref.StorageKey,
		Caption:    ref.Caption,
		OrderIndex: ref.OrderIndex,
		CreatedAt:  ref.CreatedAt,
	}
}

func imageFromModel(m ImageRefModel) domain.ImageRef {
	return domain.ImageRef{
		ID:         m.ID,
		StorageKey: m.StorageKey,
		Caption:    m.Caption,
		OrderIndex: m.OrderIndex,
		CreatedAt:  m.CreatedAt,
	}
}

func noteToModel(n domain.UserNote) NoteModel {
	return NoteModel{
		ItemKey:   n.ItemKey,
		Text:      n.Text,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
	}
}

func noteFromModel(m NoteModel) domain.UserNote {
	return domain.UserNote{
		ItemKey:   m.ItemKey,
		Text:      m.Text,
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
