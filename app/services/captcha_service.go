package services

import (
	"context"
	"errors"
	"image"
	"image/color"
	"math"
	"math/rand"
	"strconv"
	"sync"
	"time"

	"github.com/amirphl/kargo/utils"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/wenlng/go-captcha/v2/rotate"
	"golang.org/x/image/draw"
)

// CaptchaService exposes methods to generate and verify rotate captchas
// (https://github.com/wenlng/go-captcha).
//
// Flow:
// - Generate: returns a challenge ID and two base64 images (master and thumb)
// - Verify: validates a user-provided angle against the stored target angle with tolerance
// - Challenges are consumed by the first verification attempt, successful or not
type CaptchaService interface {
	GenerateRotate(ctx context.Context) (*RotateChallenge, error)
	VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool
}

type RotateChallenge struct {
	ID                string
	MasterImageBase64 string
	ThumbImageBase64  string
	ThumbSize         int
}

// ChallengeStore keeps the target angle of each pending challenge
type ChallengeStore interface {
	Set(ctx context.Context, id string, angle int, ttl time.Duration) error
	// Take returns and removes the angle stored under id
	Take(ctx context.Context, id string) (int, bool, error)
}

type captchaServiceImpl struct {
	rotator   rotate.Captcha
	store     ChallengeStore
	ttl       time.Duration
	padding   int // tolerance for angle validation
	imgSizePx int
}

// NewCaptchaServiceRotate constructs a CaptchaService using rotate mode.
// A nil store keeps challenges in process memory.
func NewCaptchaServiceRotate(store ChallengeStore, ttl time.Duration, padding int, imgSizePx int) (CaptchaService, error) {
	if imgSizePx <= 0 {
		imgSizePx = 220
	}
	if ttl <= 0 {
		ttl = 2 * time.Minute
	}
	if store == nil {
		store = NewMemoryChallengeStore()
	}

	builder := rotate.NewBuilder(
		rotate.WithImageSquareSize(imgSizePx),
	)
	builder.SetResources(
		rotate.WithImages(generateRotateBackgrounds(3, imgSizePx)),
	)

	return &captchaServiceImpl{
		rotator:   builder.Make(),
		store:     store,
		ttl:       ttl,
		padding:   padding,
		imgSizePx: imgSizePx,
	}, nil
}

func (s *captchaServiceImpl) GenerateRotate(ctx context.Context) (*RotateChallenge, error) {
	captData, err := s.rotator.Generate()
	if err != nil {
		return nil, err
	}

	block := captData.GetData()
	if block == nil {
		return nil, errors.New("captcha generator returned no data")
	}

	masterB64, err := captData.GetMasterImage().ToBase64()
	if err != nil {
		return nil, err
	}
	thumbB64, err := captData.GetThumbImage().ToBase64()
	if err != nil {
		return nil, err
	}

	challengeID := uuid.New().String()
	if err := s.store.Set(ctx, challengeID, block.Angle, s.ttl); err != nil {
		return nil, err
	}

	return &RotateChallenge{
		ID:                challengeID,
		MasterImageBase64: masterB64,
		ThumbImageBase64:  thumbB64,
		ThumbSize:         block.Width,
	}, nil
}

func (s *captchaServiceImpl) VerifyRotate(ctx context.Context, challengeID string, userAngle float64) bool {
	if challengeID == "" {
		return false
	}
	target, ok, err := s.store.Take(ctx, challengeID)
	if err != nil || !ok {
		return false
	}
	return rotate.Validate(int(math.Round(userAngle)), target, s.padding)
}

// --- Redis store ---

type redisChallengeStore struct {
	rc *redis.Client
}

// NewRedisChallengeStore shares pending challenges between instances
func NewRedisChallengeStore(rc *redis.Client) ChallengeStore {
	return &redisChallengeStore{rc: rc}
}

func (s *redisChallengeStore) Set(ctx context.Context, id string, angle int, ttl time.Duration) error {
	return s.rc.Set(ctx, utils.CaptchaChallengeCacheKey+id, angle, ttl).Err()
}

func (s *redisChallengeStore) Take(ctx context.Context, id string) (int, bool, error) {
	raw, err := s.rc.GetDel(ctx, utils.CaptchaChallengeCacheKey+id).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	angle, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, err
	}
	return angle, true, nil
}

// --- In-memory store with TTL ---

type storeEntry struct {
	targetAngle int
	expiresAt   time.Time
}

type memoryChallengeStore struct {
	mu sync.Mutex
	m  map[string]storeEntry
}

// NewMemoryChallengeStore keeps challenges in process memory; expired entries are dropped lazily
func NewMemoryChallengeStore() ChallengeStore {
	return &memoryChallengeStore{m: make(map[string]storeEntry)}
}

func (s *memoryChallengeStore) Set(_ context.Context, id string, angle int, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	for k, v := range s.m {
		if now.After(v.expiresAt) {
			delete(s.m, k)
		}
	}
	s.m[id] = storeEntry{targetAngle: angle, expiresAt: now.Add(ttl)}
	return nil
}

func (s *memoryChallengeStore) Take(_ context.Context, id string) (int, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.m[id]
	if !ok {
		return 0, false, nil
	}
	delete(s.m, id)
	if time.Now().After(e.expiresAt) {
		return 0, false, nil
	}
	return e.targetAngle, true, nil
}

// --- Utility: generate simple background images programmatically ---

func generateRotateBackgrounds(n int, size int) []image.Image {
	if n <= 0 {
		n = 1
	}
	imgs := make([]image.Image, 0, n)
	for i := 0; i < n; i++ {
		imgs = append(imgs, newNoiseGradientImage(size))
	}
	return imgs
}

// newNoiseGradientImage paints a coarse gradient and scales it up, which keeps
// generation cheap for large captcha sizes
func newNoiseGradientImage(size int) image.Image {
	small := size / 4
	if small < 16 {
		small = 16
	}
	src := image.NewRGBA(image.Rect(0, 0, small, small))
	half := float64(small) / 2
	for y := 0; y < small; y++ {
		for x := 0; x < small; x++ {
			dx := float64(x) - half
			dy := float64(y) - half
			t := math.Sqrt(dx*dx+dy*dy) / half
			if t > 1 {
				t = 1
			}
			base := uint8(200 - int(150*t))
			noise := uint8(rand.Intn(30))
			src.Set(x, y, color.RGBA{R: base + noise/3, G: base, B: 255 - base/2, A: 255})
		}
	}

	dst := image.NewRGBA(image.Rect(0, 0, size, size))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	drawRect(dst, 10, 10, size/3, size/12, color.RGBA{R: 255, G: 255, B: 255, A: 32})
	drawRect(dst, size/2, size/3, size/3, size/10, color.RGBA{R: 0, G: 0, B: 0, A: 24})
	return dst
}

func drawRect(dst *image.RGBA, x, y, w, h int, c color.RGBA) {
	rect := image.Rect(x, y, x+w, y+h)
	draw.Draw(dst, rect, &image.Uniform{C: c}, image.Point{}, draw.Over)
}
