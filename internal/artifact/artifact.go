package artifact

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/shouni/go-carousel-kit/pkg/domain"
)

const (
	namePrefix      = "carousels-"
	nameExt         = ".json"
	processedMarker = "-processed"
)

// ErrEmptyArtifact は、カルーセル0件のアーティファクトを書こうとしたときに返すのだ。
// 空ファイルを公開キューに積まないための防波堤なのだよ。
var ErrEmptyArtifact = errors.New("空のアーティファクトは書き込めないのだ")

// Store は、中間アーティファクト置き場（ローカルディレクトリ）の管理者なのだ。
//
// アーティファクトは書いたら変更せず、公開処理が成功したらファイル名に
// -processed を付けてリネームするのだ。リネームはアトミックなので、途中で
// 落ちても「未処理のまま残る」か「処理済みになっている」かのどちらかで、
// 中途半端な状態にはならないのだ。
type Store struct {
	dir string
}

// NewStore はアーティファクト置き場を指すストアを返すのだ。
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Write は1回の生成実行の成果物をタイムスタンプ名のJSONとして書き出し、
// ファイル名を返すのだ。
func (s *Store) Write(art domain.Artifact) (string, error) {
	if len(art.Carousels) == 0 {
		return "", ErrEmptyArtifact
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return "", fmt.Errorf("アーティファクトディレクトリの作成に失敗したのだ: %w", err)
	}

	name := fmt.Sprintf("%s%d%s", namePrefix, art.GeneratedAt.Unix(), nameExt)
	data, err := json.MarshalIndent(art, "", "  ")
	if err != nil {
		return "", fmt.Errorf("アーティファクトのエンコードに失敗したのだ: %w", err)
	}

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		return "", fmt.Errorf("アーティファクト '%s' の書き込みに失敗したのだ: %w", name, err)
	}
	return name, nil
}

// ListPending は未処理のアーティファクト名を名前順で返すのだ。
// -processed 付きのファイルは候補から外れるのだ。
func (s *Store) ListPending() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("アーティファクト一覧の取得に失敗したのだ: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if !strings.HasPrefix(name, namePrefix) || !strings.HasSuffix(name, nameExt) {
			continue
		}
		if strings.HasSuffix(strings.TrimSuffix(name, nameExt), processedMarker) {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Read は指定アーティファクトをパースして返すのだ。
func (s *Store) Read(name string) (domain.Artifact, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("アーティファクト '%s' の読み込みに失敗したのだ: %w", name, err)
	}

	var art domain.Artifact
	if err := json.Unmarshal(data, &art); err != nil {
		return domain.Artifact{}, fmt.Errorf("アーティファクト '%s' のパースに失敗したのだ: %w", name, err)
	}
	return art, nil
}

// MarkProcessed は処理済みマーカー付きの名前へリネームするのだ。
// 監査のために削除はしないのだ。
func (s *Store) MarkProcessed(name string) error {
	processed := ProcessedName(name)
	if err := os.Rename(filepath.Join(s.dir, name), filepath.Join(s.dir, processed)); err != nil {
		return fmt.Errorf("アーティファクト '%s' の処理済みリネームに失敗したのだ: %w", name, err)
	}
	return nil
}

// ProcessedName は処理済みマーカー付きのファイル名を返すのだ。
func ProcessedName(name string) string {
	base := strings.TrimSuffix(name, nameExt)
	return base + processedMarker + nameExt
}

// Key は、アーティファクト内のユニット・スライド位置からオブジェクトストア用の
// 安定キーを作るのだ。同じアーティファクトを再処理しても同じキーに上書きされる
// ので、at-least-once の再実行で画像がゴミとして増殖しないのだ。
func Key(artifactName string, unitIndex, slideIndex int) string {
	base := strings.TrimSuffix(artifactName, nameExt)
	return fmt.Sprintf("%s/unit_%02d/slide_%02d.png", base, unitIndex+1, slideIndex)
}
