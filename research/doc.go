// Package research enriches an agent's memory from the web.
//
// A session asks the model for search queries, looks each one up and walks
// the result pages depth first. After every page the model picks the next
// link among the first few outbound links or answers "None" to stop. A
// LinkSet makes sure no page is fetched twice.
//
// There is no depth limit: a walk ends when the model stops picking or every
// reachable link was visited. Large link graphs can therefore keep a session
// busy for a long time; cancel the context to bound it.
package research
