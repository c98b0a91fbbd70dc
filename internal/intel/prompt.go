package intel

import (
	"encoding/json"
	"regexp"
	"strings"

	jsonrepair "github.com/RealAlexandreAI/json-repair"
	"github.com/rotisserie/eris"

	"github.com/aozorabiz/kaisha-intel/internal/model"
)

const extractionSystemPrompt = `あなたは企業調査アシスタントです。入力された企業WebサイトURLおよび外部検索結果（ある場合）を根拠に、企業情報を抽出して返してください。

目的:
- フォームに自動セットする項目は「業種 / 従業員数 / 年間売上」の3つ
- これら3項目はフロント側でプルダウン選択式。候補リストから「最も近いもの」を必ず選び、候補の文字列をそのまま返す（候補に合致しない場合はnull）。
- それ以外で取得できた有用情報は「取得情報」欄に流し込めるよう、箇条書き（短い1行）としてextraBulletsに入れる

制約:
- 推測は禁止。根拠がない場合は null / 空配列にする
- 取得した情報（従業員数/売上/業種など）について、サイト内の複数箇所（会社概要、IR、採用、沿革、決算/IR資料）で整合性を確認し、矛盾する場合は確度の高い根拠（IR/有価証券報告書/決算説明資料 > 会社概要 > その他）を優先する。根拠が弱い場合はnullにする。
- 上場企業の場合は、可能な範囲で公式サイト内のIR情報（決算/IRページ、有価証券報告書に相当する開示）を優先して参照する（本テキストにIR候補ページの抜粋があれば活用する）。
- 売上高（または売上収益）と従業員数は「最新のデータ」を最優先で取得すること。古い年度の情報が混在する場合は最新年度（直近の通期/直近の決算）を優先する。
- 年度が古い記載しか見つからない場合、「最新」であることを確認できない限り、annualRevenue/employeeCount は null にする。ただし extraBullets に「古い記載しか見つからない」旨を必ず出す。
- 売上/従業員数は、可能な限り「年度/期間」と「参照元URL」を添える（extraBulletsに入れる）。例: "売上高(2025年3月期): 469億8,400万円（出典: <URL>）"
- 外部サイトの情報は誤りが混ざるため、公式サイト/一次情報と矛盾する場合は採用しない（採用しない場合でも extraBullets に「矛盾検出」のメモを出す）。
- extraBullets は「入力項目以外」の情報のみ（業種/従業員数/年間売上は入れない）
- extraBullets は日本語で、1項目=1行の短文。最大12件まで
- URLが会社サイトでない/情報が薄い場合も、無理に埋めずnullを返す
- 候補から選ぶ時は、取得できた数値/表現を候補の範囲に寄せる（例: 従業員120名→「100-299名」、売上12億→「10-50億円」）
- extraBullets の先頭には、可能なら「主要製品/主要サービス/主要事業」の情報を最優先で入れる（例: "主要製品: 〜", "主要サービス: 〜"）。複数ある場合は代表的なものに絞る。

必ず下記のJSON構造で、JSONのみを返してください:
{
  "industry": string|null,
  "employeeCount": string|null,
  "annualRevenue": string|null,
  "products": string[],
  "services": string[],
  "branches": string[],
  "offices": string[],
  "factories": string[],
  "otherLocations": string[],
  "extraBullets": string[],
  "summary": string|null,
  "rawNotes": string|null
}`

// Prompt slice limits: official homepage text dominates, external and IR
// snippets supplement.
const (
	officialTextLimit = 9000
	externalTextLimit = 6000
	irTextLimit       = 4000
)

// SystemPrompt returns the static system prompt for the extraction call.
// Static so it can sit behind a prompt-cache breakpoint.
func SystemPrompt() string { return extractionSystemPrompt }

// BuildUserPrompt assembles the per-request extraction prompt.
func BuildUserPrompt(websiteURL string, opts model.IntelOptions, officialText, externalText, irText string, facts *model.FinancialFacts) string {
	var b strings.Builder
	b.WriteString("WebサイトURL:\n")
	b.WriteString(websiteURL)
	b.WriteString("\n\nプルダウン候補（この文字列から選択して返す）:\n")
	b.WriteString("- 業種候補: " + joinOrNone(opts.Industries) + "\n")
	b.WriteString("- 従業員数候補: " + joinOrNone(opts.EmployeeRanges) + "\n")
	b.WriteString("- 年間売上候補: " + joinOrNone(opts.RevenueRanges) + "\n")
	b.WriteString("\nWebサイトから取得したテキスト:\n")
	b.WriteString(truncate(officialText, officialTextLimit))
	b.WriteString("\n\n外部企業情報サイト等から取得したテキスト（取得できた場合）:\n")
	b.WriteString(orNone(truncate(externalText, externalTextLimit)))
	b.WriteString("\n\nIR/開示っぽい追加テキスト（取得できた場合）:\n")
	b.WriteString(orNone(truncate(irText, irTextLimit)))
	b.WriteString("\n\n決算短信/有報PDFから抽出した強い根拠（取得できた場合）:\n")
	if facts != nil && !facts.Empty() {
		j, err := json.Marshal(facts)
		if err == nil {
			b.Write(j)
		} else {
			b.WriteString("(なし)")
		}
	} else {
		b.WriteString("(なし)")
	}
	return b.String()
}

const factsSystemPrompt = `あなたは上場企業のIR資料（決算短信/有報）の読み取り担当です。
添付のPDFから「売上高（または売上収益）」と「従業員数」を読み取り、最新の数値を返してください。

ルール:
- 推測は禁止。資料内に明記がない場合はnull
- 数値は資料にある表記をそのまま（例: "46,984百万円" や "469億8,400万円"）
- 可能なら年度/期間もevidenceLinesに含める
- evidenceLinesは短い箇条書き（根拠の抜粋を日本語で）

JSONのみで返してください:
{
  "revenueText": string|null,
  "employeesText": string|null,
  "evidenceLines": string[]
}`

// FactsPrompt returns the static prompt for the disclosure PDF reading call.
func FactsPrompt() string { return factsSystemPrompt }

var fenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

// ParseLLMJSON decodes JSON out of an LLM reply. Fenced code blocks are
// stripped first; a strict parse is tried before json-repair, so repair never
// masks a well-formed answer. Failure after repair is a hard error.
func ParseLLMJSON(reply string, out any) error {
	text := strings.TrimSpace(reply)
	if m := fenceRe.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	if err := json.Unmarshal([]byte(text), out); err == nil {
		return nil
	}
	repaired, err := jsonrepair.RepairJSON(text)
	if err != nil {
		return eris.Wrap(err, "intel: repair llm json")
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		return eris.Wrap(err, "intel: parse llm json")
	}
	return nil
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "(未提供)"
	}
	return strings.Join(items, " / ")
}

func orNone(s string) string {
	if s == "" {
		return "(なし)"
	}
	return s
}

func truncate(s string, maxChars int) string {
	runes := []rune(s)
	if len(runes) <= maxChars {
		return s
	}
	return string(runes[:maxChars])
}
