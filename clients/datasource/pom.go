// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package datasource implements clients fetching metadata from upstream
// package registries.
package datasource

import (
	"encoding/xml"
	"io"
	"strings"

	"golang.org/x/net/html/charset"
)

// Project is the document model of a pom.xml. Repeated XML children
// (dependencies, developers, licenses) decode to slices even when only a
// single child is present.
type Project struct {
	GroupID     string `xml:"groupId"`
	ArtifactID  string `xml:"artifactId"`
	Version     string `xml:"version"`
	Packaging   string `xml:"packaging"`
	Name        string `xml:"name"`
	Description string `xml:"description"`
	URL         string `xml:"url"`

	Parent          Parent          `xml:"parent"`
	Organization    Organization    `xml:"organization"`
	Developers      []Developer     `xml:"developers>developer"`
	Licenses        []License       `xml:"licenses>license"`
	SCM             SCM             `xml:"scm"`
	IssueManagement IssueManagement `xml:"issueManagement"`
	Dependencies    []Dependency    `xml:"dependencies>dependency"`
}

// Parent identifies the parent project a POM inherits from.
type Parent struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
}

// Organization is the organization block of a POM.
type Organization struct {
	Name string `xml:"name"`
	URL  string `xml:"url"`
}

// Developer is one entry of the developers list.
type Developer struct {
	ID           string `xml:"id"`
	Name         string `xml:"name"`
	Email        string `xml:"email"`
	Organization string `xml:"organization"`
}

// License is one entry of the licenses list.
type License struct {
	Name string `xml:"name"`
	URL  string `xml:"url"`
}

// SCM is the source-control block of a POM.
type SCM struct {
	URL                 string `xml:"url"`
	Connection          string `xml:"connection"`
	DeveloperConnection string `xml:"developerConnection"`
}

// IssueManagement is the issue-tracker block of a POM.
type IssueManagement struct {
	System string `xml:"system"`
	URL    string `xml:"url"`
}

// Dependency is one declared dependency of a POM.
type Dependency struct {
	GroupID    string `xml:"groupId"`
	ArtifactID string `xml:"artifactId"`
	Version    string `xml:"version"`
	Scope      string `xml:"scope"`
	Optional   string `xml:"optional"`
}

// EffectiveScope returns the dependency scope, defaulting to compile.
func (d Dependency) EffectiveScope() string {
	if d.Scope == "" {
		return "compile"
	}
	return d.Scope
}

// IsOptional coerces the optional flag to a boolean.
func (d Dependency) IsOptional() bool {
	return strings.EqualFold(strings.TrimSpace(d.Optional), "true")
}

// Metadata is the document model of an artifact-level maven-metadata.xml.
type Metadata struct {
	GroupID    string     `xml:"groupId"`
	ArtifactID string     `xml:"artifactId"`
	Versioning Versioning `xml:"versioning"`
}

// Versioning carries the version list of a Maven artifact.
type Versioning struct {
	Latest      string   `xml:"latest"`
	Release     string   `xml:"release"`
	Versions    []string `xml:"versions>version"`
	LastUpdated string   `xml:"lastUpdated"`
}

// NewMavenDecoder returns an xml decoder with CharsetReader and Entity set.
func NewMavenDecoder(reader io.Reader) *xml.Decoder {
	decoder := xml.NewDecoder(reader)
	// Set charset reader for conversion from non-UTF-8 charset into UTF-8.
	decoder.CharsetReader = charset.NewReaderLabel
	// Set HTML entity map for translation between non-standard entity names
	// and string replacements.
	decoder.Entity = xml.HTMLEntity
	return decoder
}
