// ABOUTME: Built-in system prompt used when the operator has not set one
// ABOUTME: Lists the capabilities and the command surface the assistant sits behind

package session

// DefaultSystemPrompt is the fallback system message. It mirrors the
// command surface of cmd/familiar's chat loop so the model can point
// users at the right command.
const DefaultSystemPrompt = "You are an AI assistant with access to the following tools:\n" +
	"- Memory: Store and retrieve information\n" +
	"- Fetch: Get information from the web\n" +
	"- Puppeteer: Control a browser\n" +
	"- Sequential Thinking: Break down complex problems\n\n" +
	"The user can interact with you using these commands:\n" +
	"!model <name> - Change the AI model\n" +
	"!remember <content> - Store something in memory\n" +
	"!think <problem> - Reason through a problem step by step\n" +
	"!fetch <url> - Fetch a web page\n" +
	"!system <message> - Set a custom system message\n" +
	"!help - Show all available commands"
