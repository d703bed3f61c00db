// approvals.go
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

// FindApproval loads the record for one (application, department) pair.
func FindApproval(db *gorm.DB, applicationID, department string) (*models.ApprovalRecord, error) {
	var rec models.ApprovalRecord
	err := db.Where("application_id = ? AND department_name = ?", applicationID, department).
		First(&rec).Error
	if err != nil {
		return nil, translate(err)
	}
	return &rec, nil
}

// Siblings loads every approval record of an application in department order.
func Siblings(db *gorm.DB, applicationID string) ([]models.ApprovalRecord, error) {
	var recs []models.ApprovalRecord
	err := db.Where("application_id = ?", applicationID).
		Order("department_name").
		Find(&recs).Error
	return recs, err
}

// SiblingsFor loads approval records for several applications, keyed by application id.
func SiblingsFor(db *gorm.DB, applicationIDs []string) (map[string][]models.ApprovalRecord, error) {
	out := make(map[string][]models.ApprovalRecord, len(applicationIDs))
	if len(applicationIDs) == 0 {
		return out, nil
	}
	var recs []models.ApprovalRecord
	err := db.Where("application_id IN ?", applicationIDs).
		Order("department_name").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	for _, r := range recs {
		out[r.ApplicationID] = append(out[r.ApplicationID], r)
	}
	return out, nil
}

// TransitionApproval moves a record out of status from. It is a compare-and-swap:
// ErrStale means another writer changed the status first.
func TransitionApproval(tx *gorm.DB, id string, from models.ApprovalStatus, fields map[string]interface{}) error {
	result := tx.Model(&models.ApprovalRecord{}).
		Where("id = ? AND status = ?", id, from).
		Updates(fields)
	if result.Error != nil {
		return translate(result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}

// LockSiblings loads every approval record of an application FOR UPDATE, so
// the read sees the latest committed statuses regardless of isolation level.
func LockSiblings(tx *gorm.DB, applicationID string) ([]models.ApprovalRecord, error) {
	var recs []models.ApprovalRecord
	err := tx.Session(&gorm.Session{Logger: tx.Logger.LogMode(logger.Silent)}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("application_id = ?", applicationID).
		Order("department_name").
		Find(&recs).Error
	return recs, err
}
