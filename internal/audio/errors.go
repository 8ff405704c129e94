/*
 * This file is part of MME (https://github.com/Sahilpatil2001/mme-fastapi).
 * Copyright (C) 2025 Sahil Patil
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program. If not, see <https://www.gnu.org/licenses/>.
 */

package audio

import "fmt"

// AssemblyError reports a failure while rendering silence or concatenating segments
type AssemblyError struct {
	Op  string // "silence" or "concat"
	Err error
}

func (e *AssemblyError) Error() string {
	return fmt.Sprintf("audio %s failed: %v", e.Op, e.Err)
}

func (e *AssemblyError) Unwrap() error {
	return e.Err
}

// MissingSegmentError reports an input file that does not exist at assembly time
type MissingSegmentError struct {
	Path string
}

func (e *MissingSegmentError) Error() string {
	return fmt.Sprintf("audio segment missing: %s", e.Path)
}
