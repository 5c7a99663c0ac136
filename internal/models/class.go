package models

import "time"

// ClassGroup is a class students enroll into.
type ClassGroup struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Stage     int       `db:"stage" json:"stage"`
	Notes     *string   `db:"notes" json:"notes,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClassSession records one lesson given to a class, with the lesson bookmarks reached.
type ClassSession struct {
	ID            string    `db:"id" json:"id"`
	ClassID       string    `db:"class_id" json:"class_id"`
	TeacherID     *string   `db:"teacher_id" json:"teacher_id,omitempty"`
	LessonDate    time.Time `db:"lesson_date" json:"lesson_date"`
	LastParagraph *int      `db:"last_paragraph" json:"last_paragraph,omitempty"`
	LastWord      *string   `db:"last_word" json:"last_word,omitempty"`
	NewDictation  *int      `db:"new_dictation" json:"new_dictation,omitempty"`
	OldDictation  *int      `db:"old_dictation" json:"old_dictation,omitempty"`
	NewReading    *int      `db:"new_reading" json:"new_reading,omitempty"`
	OldReading    *int      `db:"old_reading" json:"old_reading,omitempty"`
	LessonCheck   *string   `db:"lesson_check" json:"lesson_check,omitempty"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// ClassSessionFilter narrows session listings.
type ClassSessionFilter struct {
	ClassID   string
	TeacherID string
	From      *time.Time
	To        *time.Time
}
