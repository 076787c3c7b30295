package chat

import (
	"fmt"
	"strings"

	"github.com/jobfinder/assistant/internal/domain"
)

const systemPrompt = `Bạn là trợ lý tư vấn việc làm của JobFinder. Nhiệm vụ của bạn:
- Trả lời câu hỏi của ứng viên về các tin tuyển dụng trong phần "Tin tuyển dụng liên quan".
- Chỉ dùng thông tin có trong các tin đó; không bịa thêm mức lương, quyền lợi hay yêu cầu.
- Nếu không có tin nào phù hợp, nói rõ là chưa tìm thấy và gợi ý ứng viên mô tả lại nhu cầu.
- Trả lời bằng tiếng Việt, ngắn gọn, thân thiện, xưng "mình".`

const degradedNotice = `Lưu ý: hệ thống tìm kiếm tin tuyển dụng đang tạm thời gián đoạn, nên bạn không có dữ liệu tin tuyển dụng cho câu này. Hãy nói rõ với ứng viên rằng bạn chưa tra cứu được tin phù hợp ngay lúc này và mời họ thử lại sau.`

const greetingAnswer = `Chào bạn! Mình là trợ lý việc làm của JobFinder. Bạn đang tìm công việc như thế nào — vị trí, địa điểm hay mức lương mong muốn? Mình sẽ tìm các tin tuyển dụng phù hợp cho bạn.`

const fallbackAnswer = `Xin lỗi bạn, mình đang gặp trục trặc kỹ thuật và chưa trả lời được ngay. Bạn vui lòng thử lại sau ít phút nhé.`

// Phrases that short-circuit retrieval: pure greetings get a canned intro
// instead of a search over the corpus.
var greetingPhrases = []string{
	"hi", "hello", "hey", "chào", "xin chào", "chào bạn", "alo",
	"chào buổi sáng", "chào buổi chiều", "chào buổi tối",
}

func isGreeting(message string) bool {
	m := strings.ToLower(strings.TrimSpace(message))
	m = strings.Trim(m, ".,!?~ ")
	for _, g := range greetingPhrases {
		if m == g {
			return true
		}
	}
	return false
}

// buildPrompt assembles the single-string prompt for /api/generate:
// system instructions, retrieved postings, conversation so far, and the
// new message.
func buildPrompt(pc *PromptContext, message string, degraded bool) string {
	var b strings.Builder
	b.WriteString(systemPrompt)
	b.WriteString("\n\n")

	if degraded && len(pc.Chunks) == 0 {
		b.WriteString(degradedNotice)
		b.WriteString("\n\n")
	} else if len(pc.Chunks) == 0 {
		b.WriteString("Tin tuyển dụng liên quan: không tìm thấy tin nào phù hợp với câu hỏi.\n\n")
	} else {
		b.WriteString("Tin tuyển dụng liên quan:\n")
		for i, chunk := range pc.Chunks {
			fmt.Fprintf(&b, "--- Tin %d ---\n%s\n", i+1, chunk)
		}
		b.WriteString("\n")
	}

	if len(pc.History) > 0 {
		b.WriteString("Cuộc trò chuyện trước đó:\n")
		for _, msg := range pc.History {
			fmt.Fprintf(&b, "%s: %s\n", roleLabel(msg.Role), msg.Content)
		}
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "Ứng viên: %s\nTrợ lý:", message)
	return b.String()
}

func roleLabel(role string) string {
	if role == domain.RoleAssistant {
		return "Trợ lý"
	}
	return "Ứng viên"
}
