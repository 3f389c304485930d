package model

import (
	"encoding/gob"
	"io"
	"os"
	"path/filepath"

	"github.com/Bootcamp-IA-P5/Equipo-4-Proyecto-VII-Modelos-de-ensemble/pkg/errors"
)

// SaveModel はモデルを gob 形式でファイルに保存する
// 親ディレクトリが存在しない場合は作成する
//
// 使用例:
//
//	rf := ensemble.NewRandomForestClassifier()
//	// ... 学習 ...
//	err := model.SaveModel(rf, "models/random_forest.gob")
func SaveModel(m interface{}, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return errors.Wrapf(err, "create directory for %s", filename)
	}
	file, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "failed to create file")
	}
	if err := SaveModelToWriter(m, file); err != nil {
		_ = file.Close()
		return err
	}
	return errors.Wrap(file.Close(), "close model file")
}

// LoadModel はファイルからモデルを読み込む
// m は読み込み先のポインタ
func LoadModel(m interface{}, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return errors.Wrap(err, "failed to open file")
	}
	defer file.Close()
	return LoadModelFromReader(m, file)
}

// SaveModelToWriter はモデルをio.Writerに保存する
func SaveModelToWriter(m interface{}, w io.Writer) error {
	if err := gob.NewEncoder(w).Encode(m); err != nil {
		return errors.Wrap(err, "failed to encode model")
	}
	return nil
}

// LoadModelFromReader はio.Readerからモデルを読み込む
func LoadModelFromReader(m interface{}, r io.Reader) error {
	if err := gob.NewDecoder(r).Decode(m); err != nil {
		return errors.Wrap(err, "failed to decode model")
	}
	return nil
}
