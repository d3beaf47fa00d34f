// Package core holds the shared domain types and collaborator contracts of
// PromptMesh.
//
// The interaction engine composes a small set of external collaborators that
// are deliberately kept behind interfaces defined here:
//
//   - Agent          identity, capability registry, provider and memory access
//   - Provider       single "instruct" operation against a language model
//   - MemoryStore    context retrieval, result storage, learning files, page reads
//   - TemplateStore  prompt template lookup by name and model id
//   - StepStore      persisted per-chain step responses
//   - Searcher       external web search
//   - PageFetcher    page content + outbound links
//   - TranscriptStore conversation log
//
// Concrete implementations live in sibling packages (agent, memory, templates,
// chain, search, browse, transcript, model/...). Depending on core only keeps
// the engine free of backend specific imports and avoids dependency cycles.
package core
