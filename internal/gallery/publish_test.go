package gallery

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/wb-go/wbf/retry"

	"github.com/faxe1008/dstylehub/internal/storage/file"
)

type fakeUploader struct {
	objects map[string]string
	calls   int
	err     error
}

func (f *fakeUploader) Save(_ context.Context, prefix, filename string, src io.Reader) (string, error) {
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	data, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	name := prefix + "/" + filename
	f.objects[name] = string(data)
	return name, nil
}

func TestPublisher_Publish(t *testing.T) {
	dir := t.TempDir()
	local := file.NewLocal(dir)
	ctx := context.Background()
	for _, p := range [][3]string{
		{"", "index.html", "<html>"},
		{"", "developed_a.jpg", "jpeg"},
		{"thumbs", "developed_a.jpg", "thumb"},
	} {
		if _, err := local.Save(ctx, p[0], p[1], strings.NewReader(p[2])); err != nil {
			t.Fatal(err)
		}
	}

	up := &fakeUploader{objects: map[string]string{}}
	n, err := NewPublisher(up, retry.Strategy{Attempts: 1}).Publish(ctx, local, "run-1")
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if n != 3 {
		t.Errorf("Publish() uploaded %d files, want 3", n)
	}

	var names []string
	for name := range up.objects {
		names = append(names, name)
	}
	sort.Strings(names)
	want := []string{"run-1/developed_a.jpg", "run-1/index.html", "run-1/thumbs/developed_a.jpg"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("objects = %v, want %v", names, want)
	}
	if up.objects["run-1/thumbs/developed_a.jpg"] != "thumb" {
		t.Errorf("thumbnail content = %q", up.objects["run-1/thumbs/developed_a.jpg"])
	}
}

func TestPublisher_Publish_Error(t *testing.T) {
	dir := t.TempDir()
	local := file.NewLocal(dir)
	if _, err := local.Save(context.Background(), "", "index.html", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}

	boom := errors.New("bucket unavailable")
	up := &fakeUploader{objects: map[string]string{}, err: boom}

	n, err := NewPublisher(up, retry.Strategy{Attempts: 1}).Publish(context.Background(), local, "run-1")
	if err == nil {
		t.Fatal("Publish() expected error")
	}
	if n != 0 {
		t.Errorf("Publish() uploaded %d files, want 0", n)
	}
	if up.calls == 0 {
		t.Error("uploader was never called")
	}
}
