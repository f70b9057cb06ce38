package tabular

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SheetTable registers a sheet in the SQL-backed store.
type SheetTable struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	Name      string    `gorm:"size:100;uniqueIndex;not null" json:"name"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// SheetRow holds one row as a JSON array of cells.
type SheetRow struct {
	ID        uint      `gorm:"primary_key" json:"id"`
	Sheet     string    `gorm:"size:100;not null;uniqueIndex:idx_sheet_row" json:"sheet"`
	RowNo     int       `gorm:"not null;uniqueIndex:idx_sheet_row" json:"rowNo"`
	Cells     string    `gorm:"type:longtext" json:"cells"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// SQLStore keeps sheets in a relational database through gorm.
type SQLStore struct {
	db *gorm.DB
}

func NewSQLStore(db *gorm.DB) *SQLStore {
	return &SQLStore{db: db}
}

func (s *SQLStore) Migrate() error {
	return s.db.AutoMigrate(&SheetTable{}, &SheetRow{})
}

func (s *SQLStore) Sheets(ctx context.Context) ([]string, error) {
	var tables []SheetTable
	if err := s.db.WithContext(ctx).Order("id").Find(&tables).Error; err != nil {
		return nil, Wrap("list sheets", "", err)
	}
	names := make([]string, len(tables))
	for i, t := range tables {
		names[i] = t.Name
	}
	return names, nil
}

func (s *SQLStore) AddSheet(ctx context.Context, sheet string) error {
	err := s.db.WithContext(ctx).Create(&SheetTable{Name: sheet}).Error
	return Wrap("add sheet", sheet, err)
}

func (s *SQLStore) DeleteSheet(ctx context.Context, sheet string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Where("name = ?", sheet).Delete(&SheetTable{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrSheetNotFound
		}
		return tx.Where("sheet = ?", sheet).Delete(&SheetRow{}).Error
	})
	return Wrap("delete sheet", sheet, err)
}

func (s *SQLStore) exists(tx *gorm.DB, sheet string) error {
	var count int64
	if err := tx.Model(&SheetTable{}).Where("name = ?", sheet).Count(&count).Error; err != nil {
		return err
	}
	if count == 0 {
		return ErrSheetNotFound
	}
	return nil
}

func (s *SQLStore) Values(ctx context.Context, sheet string) ([][]interface{}, error) {
	db := s.db.WithContext(ctx)
	if err := s.exists(db, sheet); err != nil {
		return nil, Wrap("read", sheet, err)
	}
	var rows []SheetRow
	if err := db.Where("sheet = ?", sheet).Order("row_no").Find(&rows).Error; err != nil {
		return nil, Wrap("read", sheet, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	values := make([][]interface{}, rows[len(rows)-1].RowNo)
	for _, r := range rows {
		if r.RowNo < 1 {
			continue
		}
		var cells []interface{}
		if err := json.Unmarshal([]byte(r.Cells), &cells); err != nil {
			return nil, Wrap("read", sheet, fmt.Errorf("decode row %d: %w", r.RowNo, err))
		}
		values[r.RowNo-1] = cells
	}
	return values, nil
}

func (s *SQLStore) AppendRow(ctx context.Context, sheet string, row []interface{}) error {
	cells, err := json.Marshal(row)
	if err != nil {
		return Wrap("append", sheet, err)
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.exists(tx, sheet); err != nil {
			return err
		}
		var last SheetRow
		q := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("sheet = ?", sheet).Order("row_no desc").Limit(1).Find(&last)
		if q.Error != nil {
			return q.Error
		}
		return tx.Create(&SheetRow{Sheet: sheet, RowNo: last.RowNo + 1, Cells: string(cells)}).Error
	})
	return Wrap("append", sheet, err)
}

func (s *SQLStore) UpdateCell(ctx context.Context, sheet string, row, col int, value interface{}) error {
	if row < 1 || col < 1 {
		return Wrap("update", sheet, fmt.Errorf("invalid cell %d:%d", row, col))
	}
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.exists(tx, sheet); err != nil {
			return err
		}
		var r SheetRow
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("sheet = ? AND row_no = ?", sheet, row).First(&r).Error
		var cells []interface{}
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			r = SheetRow{Sheet: sheet, RowNo: row}
		case err != nil:
			return err
		default:
			if err := json.Unmarshal([]byte(r.Cells), &cells); err != nil {
				return fmt.Errorf("decode row %d: %w", row, err)
			}
		}
		for len(cells) < col {
			cells = append(cells, "")
		}
		cells[col-1] = value
		encoded, err := json.Marshal(cells)
		if err != nil {
			return err
		}
		r.Cells = string(encoded)
		return tx.Save(&r).Error
	})
	return Wrap("update", sheet, err)
}
