package intel

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aozorabiz/kaisha-intel/internal/model"
)

func strPtr(s string) *string { return &s }

func testOpts() model.IntelOptions {
	return model.IntelOptions{
		RevenueRanges:  testRevenueRanges,
		EmployeeRanges: testEmployeeRanges,
	}
}

func TestReconcileFactsOverrideLLMFields(t *testing.T) {
	parsed := &model.CompanyIntel{
		AnnualRevenue: strPtr("1-5億円"),
		EmployeeCount: strPtr("10-29名"),
	}
	reconcile(parsed, reconcileInput{
		Facts: &model.FinancialFacts{
			RevenueText:   strPtr("46,984百万円"),
			EmployeesText: strPtr("1,234名"),
			EvidenceLines: []string{"2026年3月期 決算短信より"},
		},
		FactsSource: "https://example.jp/ir/tanshin.pdf",
		Opts:        testOpts(),
		Now:         time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})

	// 46,984百万円 = 469.84億円.
	require.NotNil(t, parsed.AnnualRevenue)
	assert.Equal(t, "100-500億円", *parsed.AnnualRevenue)
	require.NotNil(t, parsed.EmployeeCount)
	assert.Equal(t, "1000名以上", *parsed.EmployeeCount)
	require.NotNil(t, parsed.LatestFactsSource)
	assert.Equal(t, "https://example.jp/ir/tanshin.pdf", *parsed.LatestFactsSource)
	require.NotEmpty(t, parsed.ExtraBullets)
	assert.Equal(t, "売上高(最新): 46,984百万円（決算短信/有報）", parsed.ExtraBullets[0])
	assert.Contains(t, parsed.ExtraBullets, "2026年3月期 決算短信より")
}

func TestReconcileOffListRevenueRederived(t *testing.T) {
	parsed := &model.CompanyIntel{AnnualRevenue: strPtr("約12億円")}
	reconcile(parsed, reconcileInput{
		Opts: testOpts(),
		Now:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NotNil(t, parsed.AnnualRevenue)
	assert.Equal(t, "10-50億円", *parsed.AnnualRevenue)
}

func TestReconcileOffListRevenueNulledWhenUnparsable(t *testing.T) {
	parsed := &model.CompanyIntel{AnnualRevenue: strPtr("非公開")}
	reconcile(parsed, reconcileInput{
		Opts: testOpts(),
		Now:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Nil(t, parsed.AnnualRevenue)
}

func TestReconcileStaleExternalNullsFields(t *testing.T) {
	parsed := &model.CompanyIntel{
		AnnualRevenue: strPtr("10-50億円"),
		EmployeeCount: strPtr("100-299名"),
		ExtraBullets:  []string{"主要製品: 産業機械"},
	}
	reconcile(parsed, reconcileInput{
		ExternalText:  "2022年3月期の売上高は12億円、従業員120名でした。",
		Opts:          testOpts(),
		Now:           time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		StaleAgeYears: 2,
	})
	assert.Nil(t, parsed.AnnualRevenue)
	assert.Nil(t, parsed.EmployeeCount)
	require.NotEmpty(t, parsed.ExtraBullets)
	assert.Contains(t, parsed.ExtraBullets[0], "2022年")
	assert.Contains(t, parsed.ExtraBullets[0], "要確認")
}

func TestReconcileFreshExternalKeepsFields(t *testing.T) {
	parsed := &model.CompanyIntel{AnnualRevenue: strPtr("10-50億円")}
	reconcile(parsed, reconcileInput{
		ExternalText:  "2026年3月期の売上高は12億円でした。",
		Opts:          testOpts(),
		Now:           time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		StaleAgeYears: 2,
	})
	require.NotNil(t, parsed.AnnualRevenue)
	assert.Equal(t, "10-50億円", *parsed.AnnualRevenue)
}

func TestReconcileFactsBeatStaleGuard(t *testing.T) {
	parsed := &model.CompanyIntel{}
	reconcile(parsed, reconcileInput{
		Facts:         &model.FinancialFacts{RevenueText: strPtr("12億円")},
		FactsSource:   "https://example.jp/ir/tanshin.pdf",
		ExternalText:  "2022年の古い記事",
		Opts:          testOpts(),
		Now:           time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
		StaleAgeYears: 2,
	})
	require.NotNil(t, parsed.AnnualRevenue)
	assert.Equal(t, "10-50億円", *parsed.AnnualRevenue)
}

func TestReconcileLooseScanFillsEmptyFields(t *testing.T) {
	parsed := &model.CompanyIntel{}
	reconcile(parsed, reconcileInput{
		OfficialText: "当社の売上は 4,698百万円、社員は 321名 です。",
		Opts:         testOpts(),
		Now:          time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NotNil(t, parsed.LatestRevenueText)
	assert.Equal(t, "4,698百万円", *parsed.LatestRevenueText)
	require.NotNil(t, parsed.LatestEmployeesText)
	assert.Equal(t, "321名", *parsed.LatestEmployeesText)
	// 4,698百万円 = 46.98億円.
	require.NotNil(t, parsed.AnnualRevenue)
	assert.Equal(t, "10-50億円", *parsed.AnnualRevenue)
	require.NotNil(t, parsed.EmployeeCount)
	assert.Equal(t, "300-499名", *parsed.EmployeeCount)
	assert.Contains(t, parsed.ExtraBullets, "売上高(参考): 4,698百万円")
	assert.Contains(t, parsed.ExtraBullets, "従業員数(参考): 321名")
}

func TestReconcileLooseScanDoesNotOverrideFacts(t *testing.T) {
	parsed := &model.CompanyIntel{}
	reconcile(parsed, reconcileInput{
		Facts:        &model.FinancialFacts{RevenueText: strPtr("46,984百万円")},
		FactsSource:  "https://example.jp/ir/tanshin.pdf",
		OfficialText: "古い案内: 売上 1,000百万円",
		Opts:         testOpts(),
		Now:          time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NotNil(t, parsed.LatestRevenueText)
	assert.Equal(t, "46,984百万円", *parsed.LatestRevenueText)
}

func TestReconcileBulletCap(t *testing.T) {
	var bullets []string
	for i := 0; i < 20; i++ {
		bullets = append(bullets, "項目")
	}
	parsed := &model.CompanyIntel{ExtraBullets: bullets}
	reconcile(parsed, reconcileInput{
		Opts: testOpts(),
		Now:  time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	})
	assert.Len(t, parsed.ExtraBullets, maxExtraBullets)
}
