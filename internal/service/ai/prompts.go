package ai

import (
	"fmt"
	"strings"

	"mediguide/internal/models"
)

const rewriteSystemPrompt = "你是一個醫療助理，請根據對話歷史，將使用者的追問改寫成完整問題。"

// answerRules are the persona rules enumerated in the answer prompt, in order.
var answerRules = []string{
	"請根據上下文與參考資料，用{language}提供簡短建議（≤{max_chars}字）。",
	"只根據參考資料與對話紀錄回答，不要引用參考資料以外的病例。",
	"如果患者說了很明顯是誇大的情況，請用日本搞笑藝人的方式吐槽，但吐槽完後還是認真地給予建議。",
	"如果患者說了和症狀 疾病等醫學資訊無關的問題，請用粗魯的語氣叫他閉嘴。",
}

const noContextText = "（查無相關參考資料）"

func answerSystemTemplate() string {
	var b strings.Builder
	b.WriteString("你是一個專業的醫生。\n")
	b.WriteString("患者基本資料：{profile}\n\n")
	b.WriteString("參考資料：\n{context}\n\n")
	b.WriteString("回答規則：\n")
	for i, rule := range answerRules {
		fmt.Fprintf(&b, "%d. %s\n", i+1, rule)
	}
	return b.String()
}

// renderContext numbers each reference record for the answer prompt.
func renderContext(refs []models.SourceRef) string {
	if len(refs) == 0 {
		return noContextText
	}
	var b strings.Builder
	for i, ref := range refs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "[%d] 科別: %s\n症狀: %s\n問題: %s\n醫師回覆: %s\n",
			i+1, ref.Department, ref.Symptom, ref.QuestionText, ref.DisplayAnswer())
	}
	return strings.TrimRight(b.String(), "\n")
}
