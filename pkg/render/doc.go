// Copyright (c) 2025, Logilab.  All rights reserved.
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

// Package render materialises chart and image templates by literal
// placeholder substitution.
//
// # Placeholders
//
// Templates reference values with ${KEY} tokens. The set of keys is fixed
// and ordered (see Placeholders):
//
//	NAME, DESCRIPTION, IMAGE, ICONURL, REPOURL, VERSION, DOCKER_IMAGE_TAG,
//	DEFAULT_CPU, DEFAULT_MEMORY, APP_COMMAND
//
// Two block placeholders, BUILD_COMMANDS and COMMANDS, expand to several
// lines. Each injected line is indented like the line holding the token:
//
//	    command:
//	      ${COMMANDS}
//
// renders every command on its own line at the same indentation.
//
// Substitution is a single left-to-right pass over each line. Replacement
// text is never scanned again, so a description containing "${NAME}" is
// written out literally.
//
// # Unresolved Tokens
//
// A placeholder from the table with no value is left in place and logged at
// debug level. With WithStrict(true) the renderer returns ErrUnresolved
// instead. Tokens outside the table (for example ${HOME} in a shell snippet)
// are never touched.
//
// # Trees
//
// RenderTree mirrors a template directory. Files at the top level are
// rendered; files in subdirectories are copied byte for byte unless listed
// with WithRenderedPaths (templates/statefulset.yaml by default).
package render
