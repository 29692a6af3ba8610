// Copyright 2018 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package endpoint

// Entity is a request body ready to be sent, along with its content type.
type Entity struct {
	ContentType string
	Body        []byte
}

// Endpoint binds delivery to a specific destination and wire encoding. For example, the kcvdb
// gzip multipart upload.
type Endpoint interface {
	// Name returns the name of this endpoint. It is used in logs and statistics.
	Name() string

	// URL returns the address that batches are POSTed to.
	URL() string

	// BuildEntity builds the request entity from an encoded metadata document and an encoded,
	// compressed record array. It is never called for an empty batch.
	BuildEntity(metadata, body []byte) (Entity, error)
}
