// applications.go
//
// Multi-department "no dues" clearance workflow service
// Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC
//
// This file is part of nodues.
// nodues is free software: you can redistribute it and/or modify it
// under the terms of the GNU Affero General Public License as published by the Free Software
// Foundation, either version 3 of the License, or (at your option) any later version.
// nodues is distributed in the hope that it will be useful, but WITHOUT ANY WARRANTY;
// without even the implied warranty of MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.
// See the GNU Affero General Public License for more details.
// You should have received a copy of the GNU Affero General Public License along with nodues.
// If not, see <https://www.gnu.org/licenses/>.
// Additional terms under GNU AGPL version 3 section 7:
// a) The reasonable legal notice of original copyright and author attribution must be preserved
//    by including the string: "Copyright (c) 2026 Alex Grant <info@localnerve.com> (https://www.localnerve.com), LocalNerve LLC"
//    in this material, copies, or source code of derived works.

package store

import (
	"github.com/localnerve/nodues/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// InsertApplication creates an application row together with its approval fan-out.
func InsertApplication(tx *gorm.DB, app *models.Application, approvals []models.ApprovalRecord) error {
	if err := tx.Omit(clause.Associations).Create(app).Error; err != nil {
		return translate(err)
	}
	if len(approvals) == 0 {
		return nil
	}
	return translate(tx.Create(&approvals).Error)
}

// ApplicationExists reports whether a registration number is already taken.
func ApplicationExists(tx *gorm.DB, registrationNo string) (bool, error) {
	var count int64
	err := tx.Model(&models.Application{}).
		Where("registration_no = ?", registrationNo).
		Count(&count).Error
	return count > 0, err
}

// FindApplication loads an application by id.
func FindApplication(db *gorm.DB, id string) (*models.Application, error) {
	var app models.Application
	if err := db.Where("id = ?", id).First(&app).Error; err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

// FindApplicationByRegistration loads an application by its business key.
func FindApplicationByRegistration(db *gorm.DB, registrationNo string) (*models.Application, error) {
	var app models.Application
	if err := db.Where("registration_no = ?", registrationNo).First(&app).Error; err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

// LockApplication loads an application FOR UPDATE, serializing writers on it.
func LockApplication(tx *gorm.DB, id string) (*models.Application, error) {
	var app models.Application
	err := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&app).Error
	if err != nil {
		return nil, translate(err)
	}
	return &app, nil
}

// UpdateApplication writes fields and bumps the version, provided nobody else
// bumped it since app was read. On success app.Version is advanced.
func UpdateApplication(tx *gorm.DB, app *models.Application, fields map[string]interface{}) error {
	fields["version"] = app.Version + 1
	result := tx.Model(&models.Application{}).
		Where("id = ? AND version = ?", app.ID, app.Version).
		Updates(fields)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStale
	}
	app.Version++
	return nil
}
