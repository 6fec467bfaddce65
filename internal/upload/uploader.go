package upload

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/shouni/go-remote-io/pkg/remoteio"
)

// Uploader は、スライド画像をオブジェクトストアへ退避する窓口なのだ。
// 戻り値は公開参照（URLまたはローカルパス）なのだ。
type Uploader interface {
	Upload(ctx context.Context, key string, data []byte, mimeType string) (string, error)
}

// RemoteUploader は go-remote-io の OutputWriter を使った実装なのだ。
// baseDir が gs://... ならGCS、それ以外ならローカルディレクトリに書くのだ。
type RemoteUploader struct {
	writer  remoteio.OutputWriter
	baseDir string
}

// NewRemoteUploader はアップロード先のベースを固定したアップローダーを返すのだ。
func NewRemoteUploader(writer remoteio.OutputWriter, baseDir string) *RemoteUploader {
	return &RemoteUploader{writer: writer, baseDir: baseDir}
}

// Upload は key 配下に画像を書き込み、安定した公開参照を返すのだ。
// 同じ key への再アップロードは上書きになるので、再処理しても参照は変わらないのだ。
func (u *RemoteUploader) Upload(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	fullPath, err := resolveObjectPath(u.baseDir, key)
	if err != nil {
		return "", err
	}

	if err := u.writer.Write(ctx, fullPath, bytes.NewReader(data), mimeType); err != nil {
		return "", fmt.Errorf("画像 '%s' のアップロードに失敗したのだ: %w", key, err)
	}
	return PublicRef(fullPath), nil
}

// resolveObjectPath は、GCS/ローカルを考慮してベースとキーを結合するのだ。
func resolveObjectPath(baseDir, key string) (string, error) {
	if strings.HasPrefix(strings.ToLower(baseDir), "gs://") {
		u, err := url.Parse(baseDir)
		if err != nil {
			return "", fmt.Errorf("無効なGCS URIなのだ: %w", err)
		}
		// url.JoinPath はパス部分のみを安全に結合し、スキーム部分を保護するのだ
		u.Path, err = url.JoinPath(u.Path, key)
		if err != nil {
			return "", fmt.Errorf("GCSパスの結合に失敗したのだ: %w", err)
		}
		return u.String(), nil
	}
	return filepath.Join(baseDir, filepath.FromSlash(key)), nil
}

// PublicRef は書き込み先パスから公開参照を導出するのだ。
// gs://bucket/obj は https://storage.googleapis.com/bucket/obj になるのだ。
func PublicRef(fullPath string) string {
	if strings.HasPrefix(strings.ToLower(fullPath), "gs://") {
		return "https://storage.googleapis.com/" + strings.TrimPrefix(fullPath[5:], "/")
	}
	return fullPath
}
