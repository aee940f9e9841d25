package storage

const Schema = `
-- Pages: one row per canonical URL visited during the last crawl
CREATE TABLE IF NOT EXISTS pages (
    page_id INTEGER PRIMARY KEY,
    url TEXT UNIQUE NOT NULL,
    title TEXT NOT NULL,
    content TEXT NOT NULL,
    raw_html TEXT NOT NULL,
    last_modified TEXT NOT NULL DEFAULT 'Unknown',
    size INTEGER NOT NULL,
    content_hash TEXT NOT NULL,
    parent_page_id INTEGER REFERENCES pages(page_id)
);

-- Every distinct page that linked to a visited page
CREATE TABLE IF NOT EXISTS parent_links (
    page_id INTEGER NOT NULL REFERENCES pages(page_id),
    parent_page_id INTEGER NOT NULL REFERENCES pages(page_id),
    PRIMARY KEY (page_id, parent_page_id)
);

-- Outbound links in document order; child_page_id is set once the child is visited
CREATE TABLE IF NOT EXISTS child_links (
    link_id INTEGER PRIMARY KEY,
    page_id INTEGER NOT NULL REFERENCES pages(page_id),
    child_url TEXT NOT NULL,
    child_page_id INTEGER REFERENCES pages(page_id)
);
CREATE INDEX IF NOT EXISTS idx_child_links_page ON child_links(page_id, link_id);
CREATE INDEX IF NOT EXISTS idx_child_links_url ON child_links(child_url);

-- Dictionaries. Ids are dense from 1 and double as vector indices.
CREATE TABLE IF NOT EXISTS terms (
    term_id INTEGER PRIMARY KEY,
    term TEXT UNIQUE NOT NULL,
    document_frequency INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS bigrams (
    bigram_id INTEGER PRIMARY KEY,
    term1_id INTEGER NOT NULL REFERENCES terms(term_id),
    term2_id INTEGER NOT NULL REFERENCES terms(term_id),
    UNIQUE (term1_id, term2_id)
);

CREATE TABLE IF NOT EXISTS trigrams (
    trigram_id INTEGER PRIMARY KEY,
    term1_id INTEGER NOT NULL REFERENCES terms(term_id),
    term2_id INTEGER NOT NULL REFERENCES terms(term_id),
    term3_id INTEGER NOT NULL REFERENCES terms(term_id),
    UNIQUE (term1_id, term2_id, term3_id)
);

-- Per page, per field term statistics
CREATE TABLE IF NOT EXISTS title_term_frequency (
    page_id INTEGER NOT NULL REFERENCES pages(page_id),
    term_id INTEGER NOT NULL REFERENCES terms(term_id),
    frequency INTEGER NOT NULL,
    PRIMARY KEY (page_id, term_id)
);

CREATE TABLE IF NOT EXISTS content_term_frequency (
    page_id INTEGER NOT NULL REFERENCES pages(page_id),
    term_id INTEGER NOT NULL REFERENCES terms(term_id),
    frequency INTEGER NOT NULL,
    PRIMARY KEY (page_id, term_id)
);

CREATE TABLE IF NOT EXISTS title_term_position (
    page_id INTEGER NOT NULL REFERENCES pages(page_id),
    term_id INTEGER NOT NULL REFERENCES terms(term_id),
    position_list TEXT NOT NULL,
    PRIMARY KEY (page_id, term_id)
);

CREATE TABLE IF NOT EXISTS content_term_position (
    page_id INTEGER NOT NULL REFERENCES pages(page_id),
    term_id INTEGER NOT NULL REFERENCES terms(term_id),
    position_list TEXT NOT NULL,
    PRIMARY KEY (page_id, term_id)
);

-- Membership indexes, usable in both directions
CREATE TABLE IF NOT EXISTS title_index (
    term_id INTEGER NOT NULL REFERENCES terms(term_id),
    page_id INTEGER NOT NULL REFERENCES pages(page_id),
    PRIMARY KEY (term_id, page_id)
);
CREATE INDEX IF NOT EXISTS idx_title_index_page ON title_index(page_id);

CREATE TABLE IF NOT EXISTS content_index (
    term_id INTEGER NOT NULL REFERENCES terms(term_id),
    page_id INTEGER NOT NULL REFERENCES pages(page_id),
    PRIMARY KEY (term_id, page_id)
);
CREATE INDEX IF NOT EXISTS idx_content_index_page ON content_index(page_id);

-- N-gram occurrences
CREATE TABLE IF NOT EXISTS title_bigram_position (
    page_id INTEGER NOT NULL REFERENCES pages(page_id),
    bigram_id INTEGER NOT NULL REFERENCES bigrams(bigram_id),
    frequency INTEGER NOT NULL,
    position_list TEXT NOT NULL,
    PRIMARY KEY (page_id, bigram_id)
);

CREATE TABLE IF NOT EXISTS content_bigram_position (
    page_id INTEGER NOT NULL REFERENCES pages(page_id),
    bigram_id INTEGER NOT NULL REFERENCES bigrams(bigram_id),
    frequency INTEGER NOT NULL,
    position_list TEXT NOT NULL,
    PRIMARY KEY (page_id, bigram_id)
);

CREATE TABLE IF NOT EXISTS title_trigram_position (
    page_id INTEGER NOT NULL REFERENCES pages(page_id),
    trigram_id INTEGER NOT NULL REFERENCES trigrams(trigram_id),
    frequency INTEGER NOT NULL,
    position_list TEXT NOT NULL,
    PRIMARY KEY (page_id, trigram_id)
);

CREATE TABLE IF NOT EXISTS content_trigram_position (
    page_id INTEGER NOT NULL REFERENCES pages(page_id),
    trigram_id INTEGER NOT NULL REFERENCES trigrams(trigram_id),
    frequency INTEGER NOT NULL,
    position_list TEXT NOT NULL,
    PRIMARY KEY (page_id, trigram_id)
);

CREATE TABLE IF NOT EXISTS title_bigram_index (
    bigram_id INTEGER NOT NULL REFERENCES bigrams(bigram_id),
    page_id INTEGER NOT NULL REFERENCES pages(page_id),
    PRIMARY KEY (bigram_id, page_id)
);

CREATE TABLE IF NOT EXISTS content_bigram_index (
    bigram_id INTEGER NOT NULL REFERENCES bigrams(bigram_id),
    page_id INTEGER NOT NULL REFERENCES pages(page_id),
    PRIMARY KEY (bigram_id, page_id)
);

CREATE TABLE IF NOT EXISTS title_trigram_index (
    trigram_id INTEGER NOT NULL REFERENCES trigrams(trigram_id),
    page_id INTEGER NOT NULL REFERENCES pages(page_id),
    PRIMARY KEY (trigram_id, page_id)
);

CREATE TABLE IF NOT EXISTS content_trigram_index (
    trigram_id INTEGER NOT NULL REFERENCES trigrams(trigram_id),
    page_id INTEGER NOT NULL REFERENCES pages(page_id),
    PRIMARY KEY (trigram_id, page_id)
);

-- Encoded term-weight vectors
CREATE TABLE IF NOT EXISTS page_vectors (
    page_id INTEGER PRIMARY KEY REFERENCES pages(page_id),
    title_vector BLOB NOT NULL,
    content_vector BLOB NOT NULL,
    weighted_vector BLOB NOT NULL
);

-- Corpus statistics snapshot, written at the end of a crawl
CREATE TABLE IF NOT EXISTS database_info (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    num_pages INTEGER NOT NULL,
    num_terms INTEGER NOT NULL,
    num_bigrams INTEGER NOT NULL,
    num_trigrams INTEGER NOT NULL,
    avg_title_length REAL NOT NULL,
    avg_content_length REAL NOT NULL,
    built_at DATETIME DEFAULT CURRENT_TIMESTAMP
);
`

// resetOrder lists every table, dependents before the tables they reference.
var resetOrder = []string{
	"database_info",
	"page_vectors",
	"title_trigram_index",
	"content_trigram_index",
	"title_bigram_index",
	"content_bigram_index",
	"title_trigram_position",
	"content_trigram_position",
	"title_bigram_position",
	"content_bigram_position",
	"title_index",
	"content_index",
	"title_term_position",
	"content_term_position",
	"title_term_frequency",
	"content_term_frequency",
	"trigrams",
	"bigrams",
	"terms",
	"child_links",
	"parent_links",
	"pages",
}
