// approval.go
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

package models

import "time"

// ApprovalRecord is one department's decision state against one Application.
// Exactly one row exists per (application, department); reapplication mutates it.
type ApprovalRecord struct {
	ID              string         `gorm:"type:char(36);primaryKey"`
	ApplicationID   string         `gorm:"type:char(36);not null;uniqueIndex:idx_approval_application_department,priority:1"`
	DepartmentName  string         `gorm:"size:64;not null;uniqueIndex:idx_approval_application_department,priority:2;index:idx_approval_department_status,priority:1"`
	Status          ApprovalStatus `gorm:"size:16;not null;index:idx_approval_department_status,priority:2"`
	ActionBy        *string        `gorm:"size:128"`
	ActionAt        *time.Time
	Remarks         *string `gorm:"size:1024"`
	RejectionReason *string `gorm:"size:1024"`
	StudentResponse *string `gorm:"size:2048"`
	// Attempt numbers the review round: 1 at creation, +1 per reapplication
	Attempt         uint    `gorm:"not null;default:1"`
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TableName overrides the table name for ApprovalRecord
func (ApprovalRecord) TableName() string {
	return "approval_records"
}
