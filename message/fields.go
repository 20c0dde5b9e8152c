// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package message

import "google.golang.org/protobuf/encoding/protowire"

// Field numbers of PB.Main (flipper.proto).
const (
	fieldCommandID     protowire.Number = 1
	fieldCommandStatus protowire.Number = 2
	fieldHasNext       protowire.Number = 3
)

// Field numbers of the PB.Main content oneof.
const (
	fieldEmpty                     protowire.Number = 4
	fieldPingRequest               protowire.Number = 5
	fieldPingResponse              protowire.Number = 6
	fieldStorageListRequest        protowire.Number = 7
	fieldStorageListResponse       protowire.Number = 8
	fieldStorageReadRequest        protowire.Number = 9
	fieldStorageReadResponse       protowire.Number = 10
	fieldStorageWriteRequest       protowire.Number = 11
	fieldStorageDeleteRequest      protowire.Number = 12
	fieldStorageMkdirRequest       protowire.Number = 13
	fieldStorageMd5sumRequest      protowire.Number = 14
	fieldStorageMd5sumResponse     protowire.Number = 15
	fieldAppStartRequest           protowire.Number = 16
	fieldStorageStatRequest        protowire.Number = 24
	fieldStorageStatResponse       protowire.Number = 25
	fieldStorageInfoRequest        protowire.Number = 28
	fieldStorageInfoResponse       protowire.Number = 29
	fieldStorageRenameRequest      protowire.Number = 30
	fieldSystemGetDateTimeRequest  protowire.Number = 35
	fieldSystemGetDateTimeResponse protowire.Number = 36
	fieldSystemSetDateTimeRequest  protowire.Number = 37
	fieldSystemAlertRequest        protowire.Number = 38
)

// PB_Storage.File
const (
	fileFieldType   protowire.Number = 1
	fileFieldName   protowire.Number = 2
	fileFieldSize   protowire.Number = 3
	fileFieldData   protowire.Number = 4
	fileFieldMd5sum protowire.Number = 5
)

// PB_System.DateTime
const (
	dateTimeFieldHour    protowire.Number = 1
	dateTimeFieldMinute  protowire.Number = 2
	dateTimeFieldSecond  protowire.Number = 3
	dateTimeFieldDay     protowire.Number = 4
	dateTimeFieldMonth   protowire.Number = 5
	dateTimeFieldYear    protowire.Number = 6
	dateTimeFieldWeekday protowire.Number = 7
)
