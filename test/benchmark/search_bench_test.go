package benchmark

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/hyperjump/pama/internal/keyword"
	"github.com/hyperjump/pama/internal/models"
	"github.com/hyperjump/pama/internal/search"
	"github.com/hyperjump/pama/internal/terminology"
)

func syntheticCodings(n int) []models.Coding {
	regions := []string{"chest", "abdomen", "pelvis", "brain", "knee", "lumbar spine"}
	out := make([]models.Coding, n)
	for i := range out {
		modality := "Computed tomography"
		if i%2 == 1 {
			modality = "Magnetic resonance imaging"
		}
		out[i] = models.Coding{
			Code:    fmt.Sprintf("%05d", 70000+i),
			Display: fmt.Sprintf("%s of %s variant %d (procedure)", modality, regions[i%len(regions)], i),
		}
	}
	return out
}

func BenchmarkBuild(b *testing.B) {
	codings := syntheticCodings(1000)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		idx, err := keyword.Build(codings, nil)
		if err != nil {
			b.Fatal(err)
		}
		_ = idx.Close()
	}
}

func BenchmarkCodeIndexSearch(b *testing.B) {
	idx, err := keyword.Build(syntheticCodings(1000), nil)
	if err != nil {
		b.Fatal(err)
	}
	defer idx.Close()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search("ct chest")
	}
}

func BenchmarkCatalogSearch(b *testing.B) {
	catalog, err := search.NewCatalog(terminology.NewLoader("", ""), nil)
	if err != nil {
		b.Fatal(err)
	}
	defer catalog.Close()
	searcher := catalog.Searcher(terminology.Reasons)
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = searcher.Search("chest pain")
	}
}

func BenchmarkServiceSearch(b *testing.B) {
	idx, err := keyword.Build(syntheticCodings(500), nil)
	if err != nil {
		b.Fatal(err)
	}
	defer idx.Close()
	svc := search.NewService(idx, search.WithDelay(0))
	defer svc.Stop()
	ctx := context.Background()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		waitCtx, cancel := context.WithTimeout(ctx, time.Second)
		_, _ = search.Await(waitCtx, svc.Search(ctx, "mri knee"))
		cancel()
	}
}

func BenchmarkSpellChecker(b *testing.B) {
	idx, err := keyword.Build(syntheticCodings(1000), nil)
	if err != nil {
		b.Fatal(err)
	}
	defer idx.Close()
	sc, err := keyword.NewSpellChecker(idx)
	if err != nil {
		b.Fatal(err)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = sc.GetSuggestedQuery("cehst abdomn")
	}
}
