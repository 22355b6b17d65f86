// Пакет session - зашифрованный cookie сессии UI.
// Cookie хранит только идентификатор сессии; выбор документа живёт на сервере.
// Шифрование AES-256-GCM.
package session

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// CookieName - имя cookie сессии.
const CookieName = "papermind_session"

// Data - содержимое cookie сессии.
type Data struct {
	ID        string `json:"id"`
	CreatedAt int64  `json:"created_at"`
}

// New создаёт сессию со случайным идентификатором.
func New() *Data {
	return &Data{ID: uuid.NewString(), CreatedAt: time.Now().Unix()}
}

// Manager шифрует и дешифрует Data в HTTP cookie.
type Manager struct {
	gcm    cipher.AEAD
	secure bool
	maxAge time.Duration
}

// NewManager создаёт менеджер сессий.
// key - base64 32-байтовый ключ или произвольная строка (хешируется SHA-256).
// Пустой key - случайный ключ, сессии не переживают рестарт.
func NewManager(key string, secure bool, maxAge time.Duration) (*Manager, error) {
	var keyBytes []byte

	if key == "" {
		keyBytes = make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, keyBytes); err != nil {
			return nil, fmt.Errorf("генерация ключа сессии: %w", err)
		}
	} else {
		decoded, err := base64.StdEncoding.DecodeString(key)
		if err == nil && len(decoded) == 32 {
			keyBytes = decoded
		} else {
			sum := sha256.Sum256([]byte(key))
			keyBytes = sum[:]
		}
	}

	block, err := aes.NewCipher(keyBytes)
	if err != nil {
		return nil, fmt.Errorf("создание AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("создание GCM: %w", err)
	}

	return &Manager{gcm: gcm, secure: secure, maxAge: maxAge}, nil
}

// Encrypt шифрует Data в base64-строку (nonce в начале шифртекста).
func (m *Manager) Encrypt(data *Data) (string, error) {
	plaintext, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("сериализация сессии: %w", err)
	}

	nonce := make([]byte, m.gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("генерация nonce: %w", err)
	}

	return base64.URLEncoding.EncodeToString(m.gcm.Seal(nonce, nonce, plaintext, nil)), nil
}

// Decrypt дешифрует строку, полученную из Encrypt.
func (m *Manager) Decrypt(encrypted string) (*Data, error) {
	ciphertext, err := base64.URLEncoding.DecodeString(encrypted)
	if err != nil {
		return nil, fmt.Errorf("декодирование base64: %w", err)
	}

	nonceSize := m.gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, errors.New("зашифрованные данные слишком короткие")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := m.gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("дешифрование сессии: %w", err)
	}

	var data Data
	if err := json.Unmarshal(plaintext, &data); err != nil {
		return nil, fmt.Errorf("десериализация сессии: %w", err)
	}
	if data.ID == "" {
		return nil, errors.New("сессия без идентификатора")
	}
	return &data, nil
}

// SetCookie записывает зашифрованную сессию в ответ.
func (m *Manager) SetCookie(w http.ResponseWriter, data *Data) error {
	encrypted, err := m.Encrypt(data)
	if err != nil {
		return err
	}

	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    encrypted,
		Path:     "/",
		MaxAge:   int(m.maxAge.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// FromRequest извлекает сессию из cookie запроса.
// Возвращает nil, nil если cookie отсутствует.
func (m *Manager) FromRequest(r *http.Request) (*Data, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		if errors.Is(err, http.ErrNoCookie) {
			return nil, nil
		}
		return nil, err
	}
	return m.Decrypt(cookie.Value)
}
