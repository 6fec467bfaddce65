package voices

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shouni/go-carousel-kit/pkg/domain"

	"cloud.google.com/go/firestore"
	"github.com/patrickmn/go-cache"
	"google.golang.org/api/iterator"
)

// ErrNoCandidates は、適合するボイス候補がひとつもなかったときに返すのだ。
var ErrNoCandidates = errors.New("テーマに適合するボイス候補がいないのだ")

const (
	cacheKey        = "voices"
	cacheTTL        = 5 * time.Minute
	cachePurge      = 10 * time.Minute
	themeTagWeight  = 2.0
	keywordTagWeight = 1.0
)

// Selector は、テーマ・キーワードに対するボイス候補のランキング窓口なのだ。
type Selector interface {
	// Select はスコア降順の候補リストを返すのだ。同点は読み込み順を保つのだ。
	Select(ctx context.Context, themes, keywords []string) ([]domain.ScoredVoice, error)
}

// Loader はボイス一覧の読み込み元なのだ。本番はFirestore、テストはフェイクを使うのだ。
type Loader interface {
	LoadVoices(ctx context.Context) ([]domain.Voice, error)
}

// RankedSelector は Loader から読んだボイスをタグ適合度でランキングする実体なのだ。
// 一覧は go-cache に短時間キャッシュして、1回の実行内で何度も読み直さないのだ。
type RankedSelector struct {
	loader Loader
	cache  *cache.Cache
}

// NewRankedSelector は、キャッシュ付きのセレクターを生成するのだ。
func NewRankedSelector(loader Loader) *RankedSelector {
	return &RankedSelector{
		loader: loader,
		cache:  cache.New(cacheTTL, cachePurge),
	}
}

// Select はボイス候補をスコア降順で返すのだ。
func (s *RankedSelector) Select(ctx context.Context, themes, keywords []string) ([]domain.ScoredVoice, error) {
	voices, err := s.loadCached(ctx)
	if err != nil {
		return nil, err
	}

	candidates := make([]domain.ScoredVoice, 0, len(voices))
	for _, v := range voices {
		score := scoreVoice(v, themes, keywords)
		if score <= 0 {
			continue
		}
		candidates = append(candidates, domain.ScoredVoice{Voice: v, Score: score})
	}

	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	// 同点の順位は読み込み順のまま（先に返ってきた候補が勝つ契約なのだ）
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates, nil
}

func (s *RankedSelector) loadCached(ctx context.Context) ([]domain.Voice, error) {
	if cached, ok := s.cache.Get(cacheKey); ok {
		return cached.([]domain.Voice), nil
	}

	voices, err := s.loader.LoadVoices(ctx)
	if err != nil {
		return nil, fmt.Errorf("ボイス一覧の読み込みに失敗したのだ: %w", err)
	}
	s.cache.Set(cacheKey, voices, cache.DefaultExpiration)
	return voices, nil
}

// scoreVoice は、ボイスのタグとテーマ・キーワードの重なりをスコア化するのだ。
// テーマ一致はキーワード一致より重いのだ。
func scoreVoice(v domain.Voice, themes, keywords []string) float64 {
	tags := make(map[string]struct{}, len(v.Tags))
	for _, tag := range v.Tags {
		tags[strings.ToLower(strings.TrimSpace(tag))] = struct{}{}
	}

	var score float64
	for _, t := range themes {
		if _, ok := tags[strings.ToLower(strings.TrimSpace(t))]; ok {
			score += themeTagWeight
		}
	}
	for _, k := range keywords {
		if _, ok := tags[strings.ToLower(strings.TrimSpace(k))]; ok {
			score += keywordTagWeight
		}
	}
	return score
}

// FirestoreLoader は Loader の Firestore 実装なのだ。
type FirestoreLoader struct {
	client     *firestore.Client
	collection string
}

// NewFirestoreLoader はボイスコレクション名を固定したローダーを返すのだ。
func NewFirestoreLoader(client *firestore.Client, collection string) *FirestoreLoader {
	return &FirestoreLoader{client: client, collection: collection}
}

// LoadVoices はコレクション全件を読み込むのだ。ボイスは高々数十件の想定なのだ。
func (l *FirestoreLoader) LoadVoices(ctx context.Context) ([]domain.Voice, error) {
	iter := l.client.Collection(l.collection).Documents(ctx)
	defer iter.Stop()

	var voices []domain.Voice
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}

		var v domain.Voice
		if err := doc.DataTo(&v); err != nil {
			return nil, fmt.Errorf("ボイス %s のデコードに失敗したのだ: %w", doc.Ref.ID, err)
		}
		v.ID = doc.Ref.ID
		voices = append(voices, v)
	}
	return voices, nil
}
