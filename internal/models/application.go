// application.go
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

import (
	"strings"
	"time"
)

// Application is one student's clearance request
type Application struct {
	ID                 string           `gorm:"type:char(36);primaryKey"`
	RegistrationNo     string           `gorm:"size:64;not null;uniqueIndex"`
	EntryKind          EntryKind        `gorm:"size:16;not null"`
	AggregateStatus    AggregateStatus  `gorm:"size:16;not null;index"`
	ManualStatus       *ManualStatus    `gorm:"size:16"`
	ReapplicationCount uint             `gorm:"not null;default:0"`
	CertificateState   CertificateState `gorm:"size:16;not null;index"`
	CertificateRef     *string          `gorm:"size:255"`
	Profile            JSON
	SubmittedBy        string `gorm:"size:128"`
	Version            uint64 `gorm:"not null;default:0"`
	CreatedAt          time.Time
	UpdatedAt          time.Time
	Approvals          []ApprovalRecord `gorm:"foreignKey:ApplicationID"`
}

// TableName overrides the table name for Application
func (Application) TableName() string {
	return "applications"
}

// NormalizeRegistration canonicalizes a registration number business key.
func NormalizeRegistration(registrationNo string) string {
	return strings.ToUpper(strings.TrimSpace(registrationNo))
}
