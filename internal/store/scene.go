package store

import (
	"database/sql"
	"errors"
	"fmt"
	"image/color"
	"time"

	colorful "github.com/lucasb-eyer/go-colorful"

	"github.com/ayusman/virtualset/internal/chroma"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// Scene represents a virtual-set scene: a background reference plus the
// keying parameters to composite the presenter over it.
type Scene struct {
	ID            string
	Name          string
	BackgroundRef string
	KeyColor      string // #rrggbb
	Threshold     float64
	Smoothing     float64
	Feathering    int
	AntiAlias     bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Settings converts the scene's stored keying parameters into engine
// settings.
func (sc *Scene) Settings() (chroma.Settings, error) {
	key, err := ParseKeyColor(sc.KeyColor)
	if err != nil {
		return chroma.Settings{}, err
	}
	return chroma.Settings{
		KeyColor:   key,
		Threshold:  sc.Threshold,
		Smoothing:  sc.Smoothing,
		Feathering: sc.Feathering,
		AntiAlias:  sc.AntiAlias,
	}, nil
}

// ParseKeyColor parses a #rrggbb key color string.
func ParseKeyColor(hex string) (color.RGBA, error) {
	c, err := colorful.Hex(hex)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("invalid key color %q: %w", hex, err)
	}
	r, g, b := c.RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 255}, nil
}

// FormatKeyColor renders a key color as a #rrggbb string.
func FormatKeyColor(c color.RGBA) string {
	return colorful.Color{
		R: float64(c.R) / 255,
		G: float64(c.G) / 255,
		B: float64(c.B) / 255,
	}.Hex()
}

// SceneRepository provides CRUD operations for scenes.
type SceneRepository struct {
	db *sql.DB
}

// Scenes returns the scene repository for this store.
func (s *Store) Scenes() *SceneRepository {
	return &SceneRepository{db: s.db}
}

// Create inserts a new scene into the database.
func (r *SceneRepository) Create(sc *Scene) error {
	now := time.Now()
	sc.CreatedAt = now
	sc.UpdatedAt = now

	_, err := r.db.Exec(
		`INSERT INTO scenes (id, name, background_ref, key_color, threshold, smoothing, feathering, anti_alias, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sc.ID, sc.Name, sc.BackgroundRef, sc.KeyColor, sc.Threshold, sc.Smoothing,
		sc.Feathering, boolToInt(sc.AntiAlias), sc.CreatedAt, sc.UpdatedAt,
	)
	if err != nil {
		return err
	}

	return nil
}

// GetByID retrieves a scene by its ID.
func (r *SceneRepository) GetByID(id string) (*Scene, error) {
	return r.scanOne(r.db.QueryRow(
		`SELECT id, name, background_ref, key_color, threshold, smoothing, feathering, anti_alias, created_at, updated_at
		 FROM scenes WHERE id = ?`,
		id,
	))
}

// GetByName retrieves a scene by its name.
func (r *SceneRepository) GetByName(name string) (*Scene, error) {
	return r.scanOne(r.db.QueryRow(
		`SELECT id, name, background_ref, key_color, threshold, smoothing, feathering, anti_alias, created_at, updated_at
		 FROM scenes WHERE name = ?`,
		name,
	))
}

// List retrieves all scenes from the database, newest first.
func (r *SceneRepository) List() ([]*Scene, error) {
	rows, err := r.db.Query(
		`SELECT id, name, background_ref, key_color, threshold, smoothing, feathering, anti_alias, created_at, updated_at
		 FROM scenes ORDER BY created_at DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var scenes []*Scene
	for rows.Next() {
		sc := &Scene{}
		var antiAlias int
		if err := rows.Scan(&sc.ID, &sc.Name, &sc.BackgroundRef, &sc.KeyColor, &sc.Threshold,
			&sc.Smoothing, &sc.Feathering, &antiAlias, &sc.CreatedAt, &sc.UpdatedAt); err != nil {
			return nil, err
		}
		sc.AntiAlias = antiAlias != 0
		scenes = append(scenes, sc)
	}

	return scenes, rows.Err()
}

// Update modifies an existing scene.
func (r *SceneRepository) Update(sc *Scene) error {
	sc.UpdatedAt = time.Now()

	res, err := r.db.Exec(
		`UPDATE scenes
		 SET name = ?, background_ref = ?, key_color = ?, threshold = ?, smoothing = ?, feathering = ?, anti_alias = ?, updated_at = ?
		 WHERE id = ?`,
		sc.Name, sc.BackgroundRef, sc.KeyColor, sc.Threshold, sc.Smoothing,
		sc.Feathering, boolToInt(sc.AntiAlias), sc.UpdatedAt, sc.ID,
	)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes a scene by its ID.
func (r *SceneRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM scenes WHERE id = ?`, id)
	if err != nil {
		return err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *SceneRepository) scanOne(row *sql.Row) (*Scene, error) {
	sc := &Scene{}
	var antiAlias int

	err := row.Scan(&sc.ID, &sc.Name, &sc.BackgroundRef, &sc.KeyColor, &sc.Threshold,
		&sc.Smoothing, &sc.Feathering, &antiAlias, &sc.CreatedAt, &sc.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	sc.AntiAlias = antiAlias != 0
	return sc, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
