package chain

// DefaultRewritePrompt turns a follow-up question into one that stands alone.
const DefaultRewritePrompt = "Given a chat history and the latest user question " +
	"which might reference context in the chat history, " +
	"formulate a standalone question which can be understood " +
	"without the chat history. Do NOT answer the question, " +
	"just reformulate it if needed and otherwise return it as is."

// DefaultAnswerPrompt answers from the retrieved context. It must keep the
// {context} placeholder.
const DefaultAnswerPrompt = "You are an assistant for question-answering tasks. " +
	"Use the following pieces of retrieved context to answer " +
	"the question. If you don't know the answer, say that you " +
	"don't know. Use three sentences maximum and keep the answer concise." +
	"\n\n" +
	"{context}"

// Template variable names shared by both prompts.
const (
	varHistory = "chat_history"
	varInput   = "input"
	varContext = "context"
)
