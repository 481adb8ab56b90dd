package prompt

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fmuoria/assessment-report-agent/internal/catalog"
)

var (
	// ErrForbidden is returned when someone other than the prompt owner edits a template
	ErrForbidden = errors.New("only the prompt owner may edit prompts")
	// ErrUnknownPrompt is returned for names without a built-in default
	ErrUnknownPrompt = errors.New("unknown prompt")
)

// previewRunes is the length of a template preview in listings
const previewRunes = 75

// Template is a stored, editable prompt
type Template struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	Owner     string    `gorm:"uniqueIndex:idx_prompt_owner_name;not null" json:"owner"`
	Name      string    `gorm:"uniqueIndex:idx_prompt_owner_name;not null" json:"name"`
	Text      string    `gorm:"type:text;not null" json:"text"`
	MaxTokens int       `gorm:"not null" json:"max_tokens"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the table name
func (Template) TableName() string {
	return "prompt_templates"
}

// Summary is a listing entry
type Summary struct {
	Name      string `json:"name"`
	Preview   string `json:"preview"`
	MaxTokens int    `json:"max_tokens"`
}

// Store reads prompt templates of the prompt owner, falling back to the
// catalog defaults.
type Store struct {
	db      *gorm.DB
	catalog *catalog.Catalog
	owner   string
	logger  *zap.Logger
}

// NewStore creates a prompt template store
func NewStore(db *gorm.DB, cat *catalog.Catalog, owner string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{db: db, catalog: cat, owner: owner, logger: logger}
}

// Owner returns the identity allowed to edit templates
func (s *Store) Owner() string {
	return s.owner
}

// Migrate creates the templates table
func (s *Store) Migrate() error {
	if err := s.db.AutoMigrate(&Template{}); err != nil {
		return fmt.Errorf("failed to migrate prompt templates: %w", err)
	}
	return nil
}

// Seed writes the catalog defaults that are not stored yet
func (s *Store) Seed(ctx context.Context) error {
	for _, p := range s.catalog.Prompts() {
		t := Template{Owner: s.owner, Name: p.Name, Text: p.Text, MaxTokens: p.MaxTokens}
		err := s.db.WithContext(ctx).
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&t).Error
		if err != nil {
			return fmt.Errorf("failed to seed prompt %q: %w", p.Name, err)
		}
	}
	s.logger.Info("prompt templates seeded", zap.Int("defaults", len(s.catalog.Prompts())))
	return nil
}

// Lookup returns the stored template, or the catalog default when none is stored
func (s *Store) Lookup(ctx context.Context, name string) (Template, error) {
	var t Template
	err := s.db.WithContext(ctx).Where("owner = ? AND name = ?", s.owner, name).First(&t).Error
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		s.logger.Warn("failed to read prompt, using default", zap.String("prompt", name), zap.Error(err))
	}

	def, ok := s.catalog.Prompt(name)
	if !ok {
		return Template{}, fmt.Errorf("%w: %s", ErrUnknownPrompt, name)
	}
	return Template{Owner: s.owner, Name: def.Name, Text: def.Text, MaxTokens: def.MaxTokens}, nil
}

// Update replaces the text of a template. Only the prompt owner may update.
func (s *Store) Update(ctx context.Context, actor, name, text string) (Template, error) {
	if actor != s.owner {
		return Template{}, ErrForbidden
	}

	current, err := s.Lookup(ctx, name)
	if err != nil {
		return Template{}, err
	}

	res := s.db.WithContext(ctx).Model(&Template{}).
		Where("owner = ? AND name = ?", s.owner, name).
		Update("text", text)
	if res.Error != nil {
		return Template{}, fmt.Errorf("failed to update prompt %q: %w", name, res.Error)
	}
	if res.RowsAffected == 0 {
		created := Template{Owner: s.owner, Name: name, Text: text, MaxTokens: current.MaxTokens}
		if err := s.db.WithContext(ctx).Create(&created).Error; err != nil {
			return Template{}, fmt.Errorf("failed to store prompt %q: %w", name, err)
		}
	}

	s.logger.Info("prompt updated", zap.String("prompt", name), zap.String("actor", actor))
	return s.Lookup(ctx, name)
}

// List returns previews of every known prompt in catalog order
func (s *Store) List(ctx context.Context) ([]Summary, error) {
	defaults := s.catalog.Prompts()
	out := make([]Summary, 0, len(defaults))
	for _, p := range defaults {
		t, err := s.Lookup(ctx, p.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, Summary{Name: t.Name, Preview: Preview(t.Text), MaxTokens: t.MaxTokens})
	}
	return out, nil
}

// Preview shortens text to the listing length
func Preview(text string) string {
	r := []rune(text)
	if len(r) <= previewRunes {
		return text
	}
	return string(r[:previewRunes]) + "..."
}
