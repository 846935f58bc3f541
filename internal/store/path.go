package store

import (
	"fmt"
	"strings"

	"github.com/arstate/FAFA-BIMBEL/internal/model"
)

// Join builds a path from segments.
func Join(segments ...string) string {
	return strings.Join(segments, "/")
}

// ValidatePath checks that path is non-empty and every segment is non-empty.
func ValidatePath(path string) error {
	if path == "" {
		return fmt.Errorf("%w: empty path", ErrInvalidPath)
	}
	for _, seg := range strings.Split(path, "/") {
		if err := validateSegment(seg); err != nil {
			return fmt.Errorf("%w in %q", err, path)
		}
	}
	return nil
}

func validateSegment(seg string) error {
	if seg == "" || strings.TrimSpace(seg) != seg {
		return fmt.Errorf("%w: bad segment %q", ErrInvalidPath, seg)
	}
	if strings.ContainsAny(seg, "/.#$[]") {
		return fmt.Errorf("%w: bad segment %q", ErrInvalidPath, seg)
	}
	return nil
}

// within reports whether path equals root or lies beneath it.
func within(path, root string) bool {
	return path == root || strings.HasPrefix(path, root+"/")
}

// related reports whether a change at one path affects the value at the other.
func related(a, b string) bool {
	return within(a, b) || within(b, a)
}

// ancestors returns every proper ancestor of path, nearest last.
func ancestors(path string) []string {
	var out []string
	for i := 0; i < len(path); i++ {
		if path[i] == '/' {
			out = append(out, path[:i])
		}
	}
	return out
}

func lastSegment(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// PathsStruct centralizes every path the application reads or writes.
type PathsStruct struct{}

// Paths is the global path builder.
var Paths = PathsStruct{}

func (PathsStruct) Classes() string { return "classes" }

func (PathsStruct) Class(classID string) string { return Join("classes", classID) }

func (p PathsStruct) Weeks(classID string) string { return Join(p.Class(classID), "weeks") }

func (p PathsStruct) Week(classID, weekID string) string { return Join(p.Weeks(classID), weekID) }

func (p PathsStruct) Items(classID, weekID string) string {
	return Join(p.Week(classID, weekID), "items")
}

func (p PathsStruct) Item(ref model.ItemRef) string {
	return Join(p.Items(ref.ClassID, ref.WeekID), ref.ItemID)
}

func (p PathsStruct) Questions(ref model.ItemRef) string { return Join(p.Item(ref), "questions") }

func (p PathsStruct) Question(ref model.ItemRef, questionID string) string {
	return Join(p.Questions(ref), questionID)
}

func (p PathsStruct) Results(ref model.ItemRef) string { return Join(p.Item(ref), "results") }

func (p PathsStruct) Result(ref model.ItemRef, studentID string) string {
	return Join(p.Results(ref), studentID)
}

// Threads is the parent of every per-student comment thread on an item.
func (p PathsStruct) Threads(ref model.ItemRef) string { return Join(p.Item(ref), "comments") }

func (p PathsStruct) Thread(t model.ThreadRef) string {
	return Join(p.Threads(t.ItemRef), t.StudentID)
}

func (PathsStruct) Users() string { return "users" }

func (PathsStruct) User(userID string) string { return Join("users", userID) }

func (p PathsStruct) JoinedClass(userID, classID string) string {
	return Join(p.User(userID), "joined_classes", classID)
}

// Username is the uniqueness index slot mapping a username to its user id.
func (PathsStruct) Username(username string) string { return Join("usernames", username) }

// AccessCode is the uniqueness index slot mapping an access code to its class id.
func (PathsStruct) AccessCode(code string) string { return Join("access_codes", code) }

func (PathsStruct) AICredential() string { return "config/ai_credential" }
