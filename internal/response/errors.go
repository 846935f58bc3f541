package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrInvalidPIN         ErrCode = "INVALID_PIN"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly ErrCode = "STUDENT_ACCESS_ONLY"
	ErrAdminAccessOnly   ErrCode = "ADMIN_ACCESS_ONLY"
	ErrNotJoined         ErrCode = "CLASS_NOT_JOINED"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation        ErrCode = "VALIDATION_ERROR"
	ErrInvalidPayload    ErrCode = "INVALID_PAYLOAD"
	ErrUsernameTaken     ErrCode = "USERNAME_TAKEN"
	ErrInvalidAccessCode ErrCode = "INVALID_ACCESS_CODE"
	ErrEmptyComment      ErrCode = "EMPTY_COMMENT"
	ErrCommentTooLong    ErrCode = "COMMENT_TOO_LONG"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound ErrCode = "NOT_FOUND"
	ErrConflict ErrCode = "CONFLICT"

	// ─── Quiz-specific ─────────────────────────────────────────────────
	ErrNotQuiz           ErrCode = "NOT_A_QUIZ"
	ErrNoQuestions       ErrCode = "NO_QUESTIONS"
	ErrNoActiveSession   ErrCode = "NO_ACTIVE_SESSION"
	ErrQuizNotInProgress ErrCode = "QUIZ_NOT_IN_PROGRESS"
	ErrSubmitFailed      ErrCode = "SUBMIT_FAILED"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Username atau kata sandi salah."
	case ErrInvalidPIN:
		return "PIN admin salah."
	case ErrTokenRequired:
		return "Token autentikasi diperlukan."
	case ErrTokenInvalid:
		return "Token autentikasi tidak valid."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "Anda tidak memiliki izin untuk mengakses sumber daya ini."
	case ErrStudentAccessOnly:
		return "Sumber daya ini terbatas untuk siswa."
	case ErrAdminAccessOnly:
		return "Sumber daya ini terbatas untuk administrator."
	case ErrNotJoined:
		return "Anda belum bergabung dengan kelas ini."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validasi gagal. Silakan periksa masukan Anda."
	case ErrInvalidPayload:
		return "Payload permintaan tidak valid."
	case ErrUsernameTaken:
		return "Username sudah dipakai!"
	case ErrInvalidAccessCode:
		return "Kode Akses Salah"
	case ErrEmptyComment:
		return "Komentar tidak boleh kosong."
	case ErrCommentTooLong:
		return "Komentar terlalu panjang."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Sumber daya tidak ditemukan."
	case ErrConflict:
		return "Sumber daya sudah ada."

	// ─── Quiz-specific ─────────────────────────────────────────────────
	case ErrNotQuiz:
		return "Materi ini bukan kuis."
	case ErrNoQuestions:
		return "Kuis ini tidak memiliki pertanyaan."
	case ErrNoActiveSession:
		return "Tidak ada kuis yang sedang dikerjakan."
	case ErrQuizNotInProgress:
		return "Kuis sudah tidak dapat dijawab."
	case ErrSubmitFailed:
		return "Gagal mengirim jawaban. Jawaban Anda masih tersimpan, silakan coba kirim lagi."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Terlalu banyak permintaan. Silakan coba lagi nanti."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "Terjadi kesalahan server internal."
	default:
		return "Terjadi kesalahan yang tidak terduga."
	}
}
